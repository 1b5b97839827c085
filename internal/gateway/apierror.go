package gateway

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-faster/jx"
)

// APIError is a non-2xx response from the upstream backend. The backend
// sends one of two envelope shapes: {"message": "..."} for single errors or
// {"errors": {"field": "..."}} for validation failures. Bodies matching
// neither shape yield an APIError with only the status code set.
type APIError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string
}

// Error implements error.
func (e *APIError) Error() string {
	if msg := e.DisplayMessage(); msg != "" {
		return fmt.Sprintf("upstream %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// DisplayMessage returns the human-readable message for this error: the
// envelope message when present, otherwise the field errors joined into one
// string, otherwise empty.
func (e *APIError) DisplayMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.FieldErrors) == 0 {
		return ""
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, field := range fields {
		msgs[i] = e.FieldErrors[field]
	}
	return strings.Join(msgs, ", ")
}

// decodeAPIError parses the upstream error envelope. Malformed or empty
// bodies are tolerated: the status code alone still identifies the failure.
func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if len(raw) == 0 {
		return apiErr
	}

	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			if d.Next() != jx.String {
				return d.Skip()
			}
			msg, err := d.Str()
			if err != nil {
				return err
			}
			apiErr.Message = msg
		case "errors":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			fields := make(map[string]string)
			if err := d.Obj(func(d *jx.Decoder, field string) error {
				if d.Next() != jx.String {
					return d.Skip()
				}
				msg, err := d.Str()
				if err != nil {
					return err
				}
				fields[field] = msg
				return nil
			}); err != nil {
				return err
			}
			if len(fields) > 0 {
				apiErr.FieldErrors = fields
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		// Not a JSON object; keep whatever was parsed before the failure.
		return apiErr
	}
	return apiErr
}
