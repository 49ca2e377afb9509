package shift

import "fmt"

// CsrfNotFoundError reports a page that did not carry the anti-forgery
// meta tag the site normally embeds.
type CsrfNotFoundError struct {
	Page string
}

func (e *CsrfNotFoundError) Error() string {
	return fmt.Sprintf("CSRF token not found on %s.", e.Page)
}

// NoMatchingFormError reports that the entitlement-offer page held no
// redemption form for the requested service.
type NoMatchingFormError struct {
	Service string
}

func (e *NoMatchingFormError) Error() string {
	return fmt.Sprintf("No redemption form found for service '%s'.", e.Service)
}

// RequestError wraps a transport-level failure (connection refused,
// timeout, ...) from any step of the session.
type RequestError struct {
	Step string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed during %s: %s", e.Step, e.Err.Error())
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
