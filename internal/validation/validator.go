// Package validation wraps validator/v10 and converts its failures into
// apperr InvalidInput errors keyed by json field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"devicegalaxy/internal/apperr"
)

var (
	tagColorPattern  = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)
	subdomainPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			name = fld.Tag.Get("form")
		}
		if idx := strings.IndexByte(name, ','); idx >= 0 {
			name = name[:idx]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "tagcolor", func(fl validator.FieldLevel) bool {
		return tagColorPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "subdomain", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return subdomainPattern.MatchString(value) &&
			!strings.HasPrefix(value, "-") &&
			!strings.HasSuffix(value, "-")
	})
	mustRegister(v, "discordtoken", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "dh=")
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Validate checks s against its `validate` tags.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
	}
	return apperr.InvalidInputWithDetails("validation failed", fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "tagcolor":
		return "must be a hex color like #RGB or #RRGGBB"
	case "subdomain":
		return "may only contain letters, numbers and inner hyphens"
	case "discordtoken":
		return "must start with dh="
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
