package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HFError is returned when the Hub responds with a non-2xx HTTP status.
// Callers distinguish "not found", "unauthorized" and "conflict" without
// string matching.
type HFError struct {
	StatusCode int
	Message    string
}

func (e *HFError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("huggingface api status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("huggingface api status %d", e.StatusCode)
}

func newHFError(resp *http.Response) *HFError {
	e := &HFError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		e.Message = body.Error
	} else {
		e.Message = strings.TrimSpace(string(raw))
	}
	return e
}

func statusIs(err error, codes ...int) bool {
	var e *HFError
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.StatusCode == c {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is an HFError with HTTP 404.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an HFError with HTTP 401 or 403.
func IsUnauthorized(err error) bool {
	return statusIs(err, http.StatusUnauthorized, http.StatusForbidden)
}

// IsConflict reports whether err is an HFError with HTTP 409.
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }
