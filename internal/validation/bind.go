package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/jogardn/storefront/internal/apperr"
)

const maxBodyBytes = 1 << 20

// Bind decodes a JSON body into out and validates it. Unknown fields, wrong
// types and schema violations all come back as *apperr.ValidationError.
func Bind(r *http.Request, v *validatorv10.Validate, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		return decodeError(err)
	}
	return Check(v, out)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return apperr.Invalid(typeErr.Field, fmt.Sprintf("must be %s", typeErr.Type))
	case errors.As(err, &syntaxErr):
		return apperr.Invalid("body", "malformed JSON")
	case errors.Is(err, io.EOF):
		return apperr.Invalid("body", "is required")
	default:
		return apperr.Invalid("body", err.Error())
	}
}
