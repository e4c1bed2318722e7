package service

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9()\-\s]*[0-9]$`)

// NewValidator returns a validator that reports fields by their JSON name and
// knows the phone and decimal tags used by request payloads.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("decimal_gt", decimalCompare(func(value, bound decimal.Decimal) bool {
		return value.GreaterThan(bound)
	}))
	_ = v.RegisterValidation("decimal_gte", decimalCompare(func(value, bound decimal.Decimal) bool {
		return value.GreaterThanOrEqual(bound)
	}))
	return v
}

// decimalCompare compares decimal strings; decimal.Decimal fields arrive as
// strings through the custom type func.
func decimalCompare(cmp func(value, bound decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		var value decimal.Decimal
		switch field := fl.Field().Interface().(type) {
		case decimal.Decimal:
			value = field
		case string:
			parsed, err := decimal.NewFromString(strings.TrimSpace(field))
			if err != nil {
				return false
			}
			value = parsed
		default:
			return false
		}
		return cmp(value, bound)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
