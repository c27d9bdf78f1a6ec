package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalAPI marks a permanent upstream refusal (bad request, quota
	// exhaustion after retries, malformed response).
	ErrExternalAPI = errors.New("external api error")
	// ErrTransient marks infrastructure failures worth retrying (5xx, 429,
	// connectivity).
	ErrTransient = errors.New("transient failure")
	// ErrUnavailable marks resources that do not exist yet but are expected to
	// appear, such as transcripts shortly after a live event ends.
	ErrUnavailable   = errors.New("not yet available")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether err should not be retried by any policy: the
// request itself is wrong, the resource is gone, or the upstream rejected it
// outright.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrExternalAPI):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
