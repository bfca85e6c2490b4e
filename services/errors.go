// services/errors.go
package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrInvalidResponse = errors.New("invalid response")

// NetworkError is any failed call to the collection API: a non-2xx
// response or a transport failure. A precondition failure (412) is a
// NetworkError like any other.
type NetworkError struct {
	Op         string
	Status     int
	StatusText string
	Detail     string
	Err        error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Message is the text shown to the user: the server's detail when it sent
// one, else "<status> <statusText>", else the transport error.
func (e *NetworkError) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Status != 0:
		return strings.TrimSpace(fmt.Sprintf("%d %s", e.Status, e.StatusText))
	case e.Err != nil:
		return e.Err.Error()
	}
	return "request failed"
}

// SchemaLoadError reports a collection whose schema could not be loaded.
// It is logged and the collection is left out of the editable set.
type SchemaLoadError struct {
	Collection string
	Err        error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load schema of %q: %v", e.Collection, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// IsConflict reports a failed If-Match precondition.
func IsConflict(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Status == http.StatusPreconditionFailed
}

// IsNotFound reports a 404 from the collection API.
func IsNotFound(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Status == http.StatusNotFound
}

// Message extracts a user-facing message from any error.
func Message(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// statusError builds the NetworkError for a non-2xx response. body may be
// empty or not JSON.
func statusError(op string, resp *http.Response, body []byte) *NetworkError {
	text := http.StatusText(resp.StatusCode)
	if parts := strings.SplitN(resp.Status, " ", 2); len(parts) == 2 && parts[1] != "" {
		text = parts[1]
	}
	ne := &NetworkError{Op: op, Status: resp.StatusCode, StatusText: text}
	if gjson.ValidBytes(body) {
		ne.Detail = gjson.GetBytes(body, "detail").String()
	}
	return ne
}
