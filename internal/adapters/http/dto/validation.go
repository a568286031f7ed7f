package dto

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every rejected request; ErrBinding wraps bodies and
// queries that could not be decoded at all.
var (
	ErrValidation = errors.New("validation failed")
	ErrBinding    = errors.New("binding failed")
)

// appNamePattern matches application, server and cluster names.
var appNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors are keyed by JSON
// name, falling back to the Go field name.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)

		_ = validate.RegisterValidation("appname", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || appNamePattern.MatchString(s)
		})
		_ = validate.RegisterValidation("notempty", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})

	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}

	return name
}

// Validatable is implemented by requests with rules struct tags cannot
// express, such as reserved property prefixes.
type Validatable interface {
	Validate() error
}

// Validate checks struct tags only.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// ValidateAll checks struct tags, then the value's own rules.
func ValidateAll(v any) error {
	if err := Validate(v); err != nil {
		return err
	}

	if rules, ok := v.(Validatable); ok {
		if err := rules.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and runs ValidateAll.
func BindAndValidate(c *gin.Context, v any) error {
	return bind(v, c.ShouldBindJSON)
}

// BindQueryAndValidate decodes the query string into v and runs ValidateAll.
func BindQueryAndValidate(c *gin.Context, v any) error {
	return bind(v, c.ShouldBindQuery)
}

func bind(v any, decode func(any) error) error {
	if err := decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return ValidateAll(v)
}

// IsValidationError reports whether err carries field-level failures.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// ValidationErrors maps each failing field to a readable message. It is
// empty for errors without field detail.
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		out[fe.Field()] = fieldMessage(fe)
	}

	return out
}

func fieldMessage(fe validator.FieldError) string {
	p := fe.Param()

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "appname":
		return "must be a valid application name"
	case "notempty":
		return "must not be empty"
	case "min", "max":
		return minMaxMessage(fe.Tag(), p, fe.Kind())
	case "gte":
		return "must be greater than or equal to " + p
	case "lte":
		return "must be less than or equal to " + p
	case "oneof":
		return "must be one of: " + p
	default:
		return "failed validation: " + fe.Tag()
	}
}

// minMaxMessage counts characters for strings and entries for maps and
// slices.
func minMaxMessage(tag, param string, kind reflect.Kind) string {
	bound := "at least "
	if tag == "max" {
		bound = "at most "
	}

	switch kind {
	case reflect.String:
		return "must be " + bound + param + " characters"
	case reflect.Map, reflect.Slice:
		return "must have " + bound + param + " entries"
	default:
		return "must be " + bound + param
	}
}
