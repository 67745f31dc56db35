package request

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/authcore/internal/scope"
)

var validate = validator.New()

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._-]{0,127}$`)

// maxBodyBytes bounds form and JSON bodies on the OAuth endpoints.
const maxBodyBytes = 64 << 10

func init() {
	validate.RegisterValidation("keyname", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		return scope.IsKnown(fl.Field().String())
	})
}

// FormDecoder is implemented by request types that can be populated from
// application/x-www-form-urlencoded parameters.
type FormDecoder interface {
	DecodeForm(values url.Values)
}

// Decode reads a JSON body into v and validates it.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// DecodeParams reads v from a form or JSON body depending on Content-Type.
// A missing Content-Type is treated as a form. Field presence is left to the
// caller, which maps it to an OAuth error.
func DecodeParams(w http.ResponseWriter, r *http.Request, v FormDecoder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := "application/x-www-form-urlencoded"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("invalid Content-Type: %w", err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		return nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		v.DecodeForm(r.PostForm)
		return nil
	default:
		return fmt.Errorf("unsupported Content-Type %q", mediaType)
	}
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
