package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidation converts validator errors into a VALIDATION_ERROR carrying
// one message per offending field. Non-validator errors keep message only.
func FromValidation(err error, message string) *Error {
	if err == nil {
		return nil
	}
	appErr := Wrap(err, ErrValidation.Code, ErrValidation.Status, message)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErr
	}
	appErr.Fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		if _, exists := appErr.Fields[field]; exists {
			continue
		}
		appErr.Fields[field] = FieldMessage(fe)
	}
	return appErr
}

// FieldMessage renders a human readable message for a single validation failure.
func FieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "datetime":
		return fmt.Sprintf("%s must use format %s", field, fe.Param())
	case "decimal_gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "decimal_gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
