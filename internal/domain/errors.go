package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed chat payload.
	ErrValidation = errors.New("invalid request")
	// ErrPayloadTooLarge signals a payload over the configured byte cap.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrMissingCredential signals an unconfigured vendor API key.
	ErrMissingCredential = errors.New("provider credential is not configured")
	// ErrTransport signals a network failure talking to a vendor or a page fetch.
	ErrTransport = errors.New("transport error")
	// ErrDecode signals a vendor response body that could not be decoded.
	ErrDecode = errors.New("could not decode provider response")
	// ErrEmptyResponse signals a vendor response with no usable text.
	ErrEmptyResponse = errors.New("provider returned an empty response")
	// ErrToolLoopExhausted signals that the tool round budget was hit without a final answer.
	ErrToolLoopExhausted = errors.New("tool calls could not be completed within allowed rounds")
	// ErrRateLimited signals a per-client rate limit hit.
	ErrRateLimited = errors.New("too many requests")
	// ErrOriginBlocked signals a cross-origin request from a foreign host.
	ErrOriginBlocked = errors.New("origin not allowed")
	// ErrPageNotFound signals a URL that resolves to no published page.
	ErrPageNotFound = errors.New("page not found")
)

// VendorHTTPError wraps a non-2xx status from a vendor API.
type VendorHTTPError struct {
	Provider string
	Status   int
}

func (e *VendorHTTPError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d)", e.Provider, e.Status)
}

// NewVendorHTTPError creates a vendor HTTP status error.
func NewVendorHTTPError(provider string, status int) error {
	return &VendorHTTPError{Provider: provider, Status: status}
}
