// Package errs defines the error markers shared by the fulfillment pipeline
// and its collaborators. Callers classify failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField     = errors.New("missing field")
	ErrAuthorization    = errors.New("authorization error")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstream         = errors.New("upstream error")
	ErrDerivation       = errors.New("derivation error")
	ErrDecode           = errors.New("decode error")
	ErrEncode           = errors.New("encode error")
	ErrStorageWrite     = errors.New("storage write error")
	ErrStorageSign      = errors.New("storage sign error")
	ErrMissingReference = errors.New("missing reference")
)

// Wrap builds an error tagged with marker that also keeps err in the chain.
// The marker should be one of the exported sentinels above.
func Wrap(marker error, op, message string, err error) error {
	detail := buildDetail(op, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(op, message string) string {
	parts := make([]string, 0, 2)
	if op = strings.TrimSpace(op); op != "" {
		parts = append(parts, op)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
