// Package status provides the uniform tagged status result used by every
// fallible operation in the engine. It mirrors the ServiceError shape the
// rest of the stack uses for HTTP errors, but adds a dedicated Declined
// variant that is never an error: it is the engine's sole channel for
// "not my concern" / "please block" / "too late" signals.
package status

import "fmt"

// Code is a discriminator for a Status value.
type Code string

const (
	// CodeOK means the operation completed normally.
	CodeOK Code = "OK"
	// CodeDeclined means the callee chose not to act. Never a failure.
	CodeDeclined Code = "DECLINED"
	CodeNotFound Code = "ENOENT"
	CodeExists   Code = "EEXIST"
	CodeInvalid  Code = "EINVAL"
	CodeAlloc    Code = "ENOMEM"
	CodeIncompat Code = "EINCOMPAT"
	CodeTrunc    Code = "ETRUNC"
	CodeTimeout  Code = "ETIMEDOUT"
	CodeAgain    Code = "EAGAIN"
	CodeBadValue Code = "EBADVAL"
	CodeOther    Code = "EOTHER"
)

// Status is a tagged discriminated result. The zero value is not a valid
// Status; use Ok() to construct a success value.
type Status struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface so a Status can be returned/checked
// with the standard errors package, without ever being confused with a
// normal Go error by callers that only check `err != nil`: callers in this
// codebase are expected to compare Code, not nil-ness.
func (s Status) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", s.Code, s.Message, s.Err)
	}
	if s.Message == "" {
		return string(s.Code)
	}
	return fmt.Sprintf("[%s] %s", s.Code, s.Message)
}

// Unwrap supports errors.Is / errors.As against the wrapped cause.
func (s Status) Unwrap() error { return s.Err }

// OK returns the success status.
func (s Status) OK() bool { return s.Code == CodeOK }

// Declined reports whether this status is the non-error Declined signal.
func (s Status) Declined() bool { return s.Code == CodeDeclined }

// Ok constructs the success status.
func Ok() Status { return Status{Code: CodeOK} }

// Declined constructs the non-error Declined status. Reserved for: an
// action requesting a block, a host callback refusing a too-late call, or
// a control-channel command declining to apply.
func Declined(msg string) Status { return Status{Code: CodeDeclined, Message: msg} }

func NotFound(msg string) Status { return Status{Code: CodeNotFound, Message: msg} }
func Exists(msg string) Status   { return Status{Code: CodeExists, Message: msg} }
func Invalid(msg string) Status  { return Status{Code: CodeInvalid, Message: msg} }
func Alloc(msg string) Status    { return Status{Code: CodeAlloc, Message: msg} }
func Incompat(msg string) Status { return Status{Code: CodeIncompat, Message: msg} }
func Truncated(msg string) Status { return Status{Code: CodeTrunc, Message: msg} }
func Timeout(msg string) Status  { return Status{Code: CodeTimeout, Message: msg} }
func Again(msg string) Status    { return Status{Code: CodeAgain, Message: msg} }
func BadValue(msg string) Status { return Status{Code: CodeBadValue, Message: msg} }

// Other wraps an unclassified error (I/O, system call, etc.) as a Status.
func Other(msg string, err error) Status {
	return Status{Code: CodeOther, Message: msg, Err: err}
}

// FromErr classifies a plain Go error as CodeOther, preserving it as the
// wrapped cause. Returns Ok() for a nil error.
func FromErr(err error) Status {
	if err == nil {
		return Ok()
	}
	var s Status
	if errorsAs(err, &s) {
		return s
	}
	return Other(err.Error(), err)
}

// errorsAs avoids importing errors just for this one call site used only
// internally; kept local to make the package's surface obvious at a glance.
func errorsAs(err error, target *Status) bool {
	type asStatus interface{ AsStatus() Status }
	if a, ok := err.(asStatus); ok {
		*target = a.AsStatus()
		return true
	}
	if s, ok := err.(Status); ok {
		*target = s
		return true
	}
	return false
}
