package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ParseResponse decodes the body into BodyJSON according to its content type. Text
// bodies are kept as a string and anything else is left undecoded.
func ParseResponse(resp *Response) error {
	if len(resp.Body) == 0 {
		return nil
	}

	contentType := strings.ToLower(resp.ContentType)
	switch {
	case strings.Contains(contentType, "json"):
		var result any
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		resp.BodyJSON = result
	case strings.HasPrefix(contentType, "text/"):
		resp.BodyJSON = string(resp.Body)
	}
	return nil
}

// Snippet returns at most n bytes of the body for error messages.
func (r *Response) Snippet(n int) string {
	if len(r.Body) <= n {
		return string(r.Body)
	}
	return string(r.Body[:n])
}

// IsAcceptedStatus reports whether a webhook receiver accepted the payload.
func IsAcceptedStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	default:
		return false
	}
}

// IsRetryableStatus returns true if the status code indicates a transient error
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
