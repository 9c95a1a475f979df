package portal

import (
	"errors"
	"fmt"
)

// ErrNavigationTimeout indicates the portal did not respond within the
// configured navigation budget.
type ErrNavigationTimeout struct {
	Err error
}

func (e ErrNavigationTimeout) Error() string {
	return fmt.Sprintf("navigation timeout: %v", e.Err)
}

func (e ErrNavigationTimeout) Unwrap() error {
	return e.Err
}

// ErrLoginRequired indicates the portal presented a login wall but no
// credentials were supplied.
type ErrLoginRequired struct {
	Err error
}

func (e ErrLoginRequired) Error() string {
	return fmt.Sprintf("login required: %v", e.Err)
}

func (e ErrLoginRequired) Unwrap() error {
	return e.Err
}

// ErrLoginFailed indicates the login fields were not found, or the
// post-submit state never settled.
type ErrLoginFailed struct {
	Err error
}

func (e ErrLoginFailed) Error() string {
	return fmt.Sprintf("login failed: %v", e.Err)
}

func (e ErrLoginFailed) Unwrap() error {
	return e.Err
}

// ErrUnitProcessing wraps any other failure while driving one unit
// through the portal.
type ErrUnitProcessing struct {
	UnitID string
	Err    error
}

func (e ErrUnitProcessing) Error() string {
	return fmt.Sprintf("unit %s: %v", e.UnitID, e.Err)
}

func (e ErrUnitProcessing) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrNavigationTimeout
	if errors.As(err, &timeout) {
		return "navigation_timeout"
	}
	var loginRequired ErrLoginRequired
	if errors.As(err, &loginRequired) {
		return "login_required"
	}
	var loginFailed ErrLoginFailed
	if errors.As(err, &loginFailed) {
		return "login_failed"
	}
	var unit ErrUnitProcessing
	if errors.As(err, &unit) {
		return "unit_processing"
	}
	return "other"
}
