package places

import (
	"errors"
	"fmt"
	"strings"
)

const maxErrorBodyPreview = 800

// ErrNetwork indicates the nearby search could not produce a usable response.
var ErrNetwork = errors.New("[Places] error when trying to get response from places api")

// UpstreamRequestError carries HTTP context for failed upstream calls.
type UpstreamRequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamRequestError) Error() string {
	parts := []string{ErrNetwork.Error()}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	method := strings.TrimSpace(e.Method)
	url := strings.TrimSpace(e.URL)
	if method != "" || url != "" {
		parts = append(parts, strings.TrimSpace(method+" "+url))
	}
	if trimmed := compactBodyPreview(e.Body); trimmed != "" {
		parts = append(parts, fmt.Sprintf("body=%q", trimmed))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes ErrNetwork and the transport cause, so callers can tell a
// canceled request from a failed one.
func (e *UpstreamRequestError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Cause}
}

// ProviderStatusError is returned when the provider answers 2xx with a
// non-success status field, e.g. REQUEST_DENIED or OVER_QUERY_LIMIT.
type ProviderStatusError struct {
	Status  string
	Message string
}

func (e *ProviderStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s; provider_status=%s", ErrNetwork.Error(), e.Status)
	}
	return fmt.Sprintf("%s; provider_status=%s; message=%q", ErrNetwork.Error(), e.Status, e.Message)
}

func (e *ProviderStatusError) Unwrap() error {
	return ErrNetwork
}

func compactBodyPreview(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	body = strings.ReplaceAll(body, "\n", " ")
	body = strings.ReplaceAll(body, "\r", " ")
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > maxErrorBodyPreview {
		return body[:maxErrorBodyPreview] + "..."
	}
	return body
}
