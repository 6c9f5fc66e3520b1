// Package validation holds the request schemas checked before any service call.
package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

// New returns a validator that reports JSON field names and understands decimal money.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	v.RegisterStructValidation(createCustomerStructValidation, CreateCustomerRequest{})

	return v
}

// createCustomerStructValidation requires exactly one of userId or a nested user.
func createCustomerStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateCustomerRequest)

	switch {
	case req.UserID == 0 && req.User == nil:
		sl.ReportError(req.UserID, "userId", "UserID", "required_without", "user")
	case req.UserID != 0 && req.User != nil:
		sl.ReportError(req.User, "user", "User", "excluded_with", "userId")
	}
}

// Check runs struct validation and converts failures into an apperr.ValidationError.
func Check(v *validatorv10.Validate, in interface{}) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	return &apperr.ValidationError{Fields: errorsToMap(err)}
}

func errorsToMap(err error) map[string]string {
	out := map[string]string{}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fieldPath(fe.Namespace())] = describe(fe)
	}
	return out
}

// fieldPath drops the top-level struct name from a namespace like
// "CreateOrderWithProductsRequest.products[1].amount".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "excluded_with":
		return "cannot be combined with " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
