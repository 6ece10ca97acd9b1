package brevo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Error codes returned by the Brevo API.
const (
	CodeDuplicateParameter = "duplicate_parameter"
	CodeInvalidParameter   = "invalid_parameter"
	CodeDocumentNotFound   = "document_not_found"
)

// APIError is a non-2xx answer from Brevo.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// DuplicateIdentifiers lists the conflicting fields of a duplicate_parameter answer, when Brevo reports them.
	DuplicateIdentifiers []string
	Body                 string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("brevo replied %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("brevo replied %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsClientError reports a 4xx status.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Mentions reports whether the message or the duplicate identifiers name one of the fields, ignoring case.
func (e *APIError) Mentions(fields ...string) bool {
	msg := strings.ToLower(e.Message)
	for _, f := range fields {
		f = strings.ToLower(f)
		if strings.Contains(msg, f) {
			return true
		}
		for _, d := range e.DuplicateIdentifiers {
			if strings.EqualFold(d, f) {
				return true
			}
		}
	}
	return false
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// parseAPIError decodes the error body, keeping raw text when it is not JSON
func parseAPIError(status int, body []byte) *APIError {

	e := &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	if !gjson.ValidBytes(body) {
		return e
	}

	res := gjson.ParseBytes(body)
	e.Code = res.Get("code").String()
	e.Message = res.Get("message").String()
	res.Get("metadata.duplicate_identifiers").ForEach(func(_, v gjson.Result) bool {
		e.DuplicateIdentifiers = append(e.DuplicateIdentifiers, v.String())
		return true
	})
	return e
}
