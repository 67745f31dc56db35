package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasScope(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"delete implies delete", []string{Delete}, Delete, true},
		{"delete implies write", []string{Delete}, Write, true},
		{"delete implies read", []string{Delete}, Read, true},
		{"write implies read", []string{Write}, Read, true},
		{"write does not imply delete", []string{Write}, Delete, false},
		{"read does not imply write", []string{Read}, Write, false},
		{"read does not imply profile", []string{Read}, Profile, false},
		{"delete does not imply profile", []string{Delete}, Profile, false},
		{"profile alone", []string{Profile}, Profile, true},
		{"profile does not imply read", []string{Profile}, Read, false},
		{"empty grants nothing", nil, Read, false},
		{"empty required", []string{Delete}, "", false},
		{"mixed set", []string{Profile, Write}, Read, true},
		{"unknown scope is exact only", []string{"admin"}, "admin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasScope(tt.granted, tt.required))
		})
	}
}

func TestCovers(t *testing.T) {
	assert.True(t, Covers([]string{Delete}, []string{Read, Write}))
	assert.True(t, Covers([]string{Read, Profile}, []string{Profile}))
	assert.False(t, Covers([]string{Read}, []string{Read, Write}))
	assert.False(t, Covers([]string{Read}, []string{"unknown"}))
	assert.False(t, Covers([]string{Read}, nil))
}

func TestParse(t *testing.T) {
	assert.Equal(t, []string{Read, Profile}, Parse("profile read read bogus"))
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("  admin  "))
}

func TestSplit_KeepsUnknown(t *testing.T) {
	assert.Equal(t, []string{"read", "admin"}, Split("read admin read"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "read profile", Format([]string{Read, Profile}))
	assert.Equal(t, "", Format(nil))
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []string{Read, Write}, Intersect([]string{Read, Write, Profile}, []string{Delete}))
	assert.Equal(t, []string{Profile}, Intersect([]string{Profile, Delete}, []string{Read, Profile}))
	assert.Nil(t, Intersect([]string{Delete}, []string{Write}))
}
