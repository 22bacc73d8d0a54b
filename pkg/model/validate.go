package model

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// inputValidate validates caller-supplied input structs.
// Initialized in init() with custom validators.
var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New()

	// Report fields by their record name (current_state, not CurrentState).
	inputValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = inputValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings that are empty after trimming whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateStruct runs struct tag validation and converts the first failure
// into a *ValidationError.
func validateStruct(v any) error {
	err := inputValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Reason: describeTag(fe)}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "must not be blank"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " check"
	}
}
