// Package validation checks request payloads and turns failures into
// client-facing messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{10}$`)
)

// messages maps "<json field>.<tag>" to the text shown to clients.
var messages = map[string]string{
	"username.required": "Username is required",
	"username.min":      "Username must be at least 3 characters",
	"username.max":      "Username cannot exceed 30 characters",
	"username.username": "Username can only contain letters, numbers, and underscores",
	"email.required":    "Email is required",
	"email.email":       "Please enter a valid email address",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 6 characters",
	"password.maxbytes": "Password cannot exceed 72 bytes",
	"newEmail.required": "New email is required",
	"newEmail.email":    "Invalid email format",
	"address.max":       "Address cannot exceed 200 characters",
	"role.oneof":        "Role must be either user or admin",
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom username, phone and maxbytes rules
// registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phonePattern.MatchString(s)
	})
	// max counts runes; bcrypt limits bytes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return &Validator{v: v}
}

// Struct validates s and returns one message per failing field, in field order.
func (v *Validator) Struct(s any) []string {
	return collect(v.v.Struct(s), "")
}

// Field validates a single value against tags, reporting failures under name.
func (v *Validator) Field(name string, value any, tags string) []string {
	return collect(v.v.Var(value, tags), name)
}

func collect(err error, name string) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if name != "" {
			field = name
		}
		out = append(out, message(field, fe))
	}
	return out
}

func message(field string, fe validator.FieldError) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if field == "phone" && fe.Tag() == "phone" {
		return fmt.Sprintf("%v is not a valid phone number!", fe.Value())
	}
	return fmt.Sprintf("%s is invalid", field)
}
