package entsoe

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownCountry indicates a country name that is not in the catalog.
var ErrUnknownCountry = errors.New("unknown country")

// UnknownTargetError indicates a zone or domain code the catalog cannot
// resolve to an EIC area domain.
type UnknownTargetError struct {
	Code string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target domain %q", e.Code)
}

// RequestError is a non-success answer from the transparency platform.
// Reason carries the Acknowledgement_MarketDocument reason text when the
// platform supplied one, otherwise a generic description of the status.
type RequestError struct {
	Status int
	Reason string
}

func (e *RequestError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("entsoe: %d %s: %s", e.Status, http.StatusText(e.Status), e.Reason)
	}
	return fmt.Sprintf("entsoe: %d %s", e.Status, http.StatusText(e.Status))
}

// Temporary reports whether the request may succeed on a later attempt.
// Rate limiting and upstream server failures are worth retrying; auth
// and bad-request answers are not.
func (e *RequestError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// DecodeError indicates a response body that could not be parsed as a
// market document.
type DecodeError struct {
	Domain string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("entsoe: decode document for %s: %v", e.Domain, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
