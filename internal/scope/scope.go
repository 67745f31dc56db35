// Package scope implements the permission lattice shared by OAuth access
// tokens and API keys: delete implies write, write implies read, and every
// other scope (profile) stands alone.
package scope

import "strings"

const (
	Read    = "read"
	Write   = "write"
	Delete  = "delete"
	Profile = "profile"
)

// Known lists every scope the server grants, in canonical order.
var Known = []string{Read, Write, Delete, Profile}

var implied = map[string][]string{
	Delete: {Write, Read},
	Write:  {Read},
}

// IsKnown reports whether s is a scope the server grants.
func IsKnown(s string) bool {
	for _, k := range Known {
		if k == s {
			return true
		}
	}
	return false
}

// HasScope reports whether granted satisfies required, following the
// implication chain. An empty granted set satisfies nothing.
func HasScope(granted []string, required string) bool {
	if required == "" {
		return false
	}
	for _, g := range granted {
		if g == required {
			return true
		}
		for _, i := range implied[g] {
			if i == required {
				return true
			}
		}
	}
	return false
}

// Covers reports whether every scope in requested is satisfied by granted.
// An empty request is never covered.
func Covers(granted, requested []string) bool {
	if len(requested) == 0 {
		return false
	}
	for _, r := range requested {
		if !HasScope(granted, r) {
			return false
		}
	}
	return true
}

// Split breaks a space-delimited scope string into de-duplicated fields
// without filtering unknown values.
func Split(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range strings.Fields(s) {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Parse splits a space-delimited scope string, drops unknown scopes and
// duplicates, and returns the rest in canonical order.
func Parse(s string) []string {
	return Normalize(strings.Fields(s))
}

// Normalize filters scopes to known values in canonical order.
func Normalize(scopes []string) []string {
	present := map[string]bool{}
	for _, s := range scopes {
		present[s] = true
	}
	var out []string
	for _, k := range Known {
		if present[k] {
			out = append(out, k)
		}
	}
	return out
}

// Format joins scopes with single spaces.
func Format(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Intersect keeps the requested scopes that allowed satisfies.
func Intersect(requested, allowed []string) []string {
	var out []string
	for _, r := range requested {
		if HasScope(allowed, r) {
			out = append(out, r)
		}
	}
	return out
}
