package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Kind is the failure taxonomy every caller of the client branches on.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// unexpectedErrorMessage is the message of last resort: classification never
// fails, it degrades to this.
const unexpectedErrorMessage = "An unexpected error occurred"

// ClassifiedError is the normalized failure shape returned across the client
// boundary. It is never mutated after creation.
type ClassifiedError struct {
	Kind       Kind
	Message    string
	StatusCode int // 0 when the failure carried no HTTP status (network, unknown)

	// Contextual marks an auth failure on an action class the caller handles
	// inline (enrollment) instead of the session being terminated.
	Contextual bool
}

// Compile-time check to ensure ClassifiedError implements error
var _ error = (*ClassifiedError)(nil)

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Classify normalizes any raised failure into a ClassifiedError. It is total:
// for any input, including nil, it returns a well-formed error and never
// panics. Failures that already carry a classification pass through
// unchanged.
func Classify(raw any) *ClassifiedError {
	switch v := raw.(type) {
	case nil:
		return &ClassifiedError{Kind: KindUnknown, Message: unexpectedErrorMessage}
	case *ClassifiedError:
		if v == nil {
			return &ClassifiedError{Kind: KindUnknown, Message: unexpectedErrorMessage}
		}
		return v
	case error:
		return classifyError(v)
	case string:
		if v == "" {
			return &ClassifiedError{Kind: KindUnknown, Message: unexpectedErrorMessage}
		}
		return &ClassifiedError{Kind: KindUnknown, Message: v}
	default:
		return &ClassifiedError{Kind: KindUnknown, Message: unexpectedErrorMessage}
	}
}

// classifyError maps a Go error to the taxonomy. Transport-level failures
// (anything that never produced a response) are network errors.
func classifyError(err error) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	// http.Client wraps transport failures in *url.Error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ClassifiedError{Kind: KindNetwork, Message: urlErr.Err.Error()}
	}

	message := err.Error()
	if message == "" {
		message = unexpectedErrorMessage
	}
	return &ClassifiedError{Kind: KindUnknown, Message: message}
}

// classifyStatus maps a failed HTTP response to the taxonomy.
// 401 → auth, 403 → permission, ≥500 → server; 400 and 422 are probed for a
// field-keyed validation payload. Everything else is unknown: a 404
// {"detail": "Not found."} envelope is not a validation failure even though
// it is field-keyed.
func classifyStatus(status int, body []byte) *ClassifiedError {
	switch {
	case status == 401:
		return &ClassifiedError{Kind: KindAuth, StatusCode: status, Message: extractMessage(body, "Authentication required")}
	case status == 403:
		return &ClassifiedError{Kind: KindPermission, StatusCode: status, Message: extractMessage(body, "Access forbidden")}
	case status >= 500:
		return &ClassifiedError{Kind: KindServer, StatusCode: status, Message: extractMessage(body, "Server error")}
	}

	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		if message, ok := firstFieldMessage(body); ok {
			return &ClassifiedError{Kind: KindValidation, StatusCode: status, Message: message}
		}
	}
	return &ClassifiedError{Kind: KindUnknown, StatusCode: status, Message: extractMessage(body, unexpectedErrorMessage)}
}

// extractMessage pulls the best available message out of a response body,
// falling back to the given default.
func extractMessage(body []byte, fallback string) string {
	if message, ok := firstFieldMessage(body); ok {
		return message
	}
	if s := strings.TrimSpace(string(body)); s != "" && !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return s
	}
	return fallback
}

// firstFieldMessage extracts the first field's first error string from a
// field-keyed payload, e.g. {"email": ["Enter a valid email address."]}.
// Uses a token stream so "first" means first in document order, which Go's
// map decoding would not preserve.
func firstFieldMessage(body []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return "", false
	}

	// First key
	if _, err := dec.Token(); err != nil {
		return "", false
	}

	var value any
	if err := dec.Decode(&value); err != nil {
		return "", false
	}

	switch v := value.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
