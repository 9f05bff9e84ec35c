// Package request decodes and validates JSON request bodies.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes bounds a JSON body. Signature captures travel base64 encoded
// and are the largest payloads.
const MaxBodyBytes = 4 << 20

var (
	ErrInvalidBody  = errors.New("invalid request body")
	ErrBodyTooLarge = errors.New("request body too large")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads a JSON body of at most MaxBodyBytes into v and checks its
// validate tags.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %w: limit is %d bytes", ErrInvalidBody, ErrBodyTooLarge, tooLarge.Limit)
		}

		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidBody, describe(verrs))
		}

		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	return nil
}

// StatusCode maps a Decode error to the HTTP status to answer with.
func StatusCode(err error) int {
	if errors.Is(err, ErrBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	return http.StatusBadRequest
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
	}

	return strings.Join(msgs, ", ")
}

// Date parses an optional YYYY-MM-DD value. Empty yields nil.
func Date(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a date", ErrInvalidBody, raw)
	}

	return &t, nil
}
