package apperror

import "net/http"

// Error is the typed failure every service returns. It carries a stable machine
// code, a message safe to show the candidate, and an HTTP status for the
// controllers. The wrapped debug error stays out of responses.
type Error struct {
	code       string
	msgToUser  string
	dbgInfoErr error
	httpStatus int
}

func (e *Error) Error() string {
	return e.msgToUser
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.dbgInfoErr
}

func (e *Error) SetDebug(err error) *Error {
	e.dbgInfoErr = err
	return e
}

func (e *Error) HTTPStatus() int {
	if e.httpStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.httpStatus
}

func (e *Error) SetHTTPStatus(code int) *Error {
	e.httpStatus = code
	return e
}

func New(code string, msgToUser string) *Error {
	return &Error{code: code, msgToUser: msgToUser}
}

const (
	CodeNotEligible      = "not_eligible"
	CodeAttemptNotActive = "attempt_not_active"
	CodeAlreadySubmitted = "already_submitted"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeTransientStorage = "transient_storage"
	CodeInternal         = "internal_server_error"
)

// ErrNotEligible covers every failed start precondition: unpublished exam,
// closed availability window, attempt limit reached.
func ErrNotEligible(msg string) *Error {
	return New(CodeNotEligible, msg).SetHTTPStatus(http.StatusForbidden)
}

func ErrAttemptNotActive() *Error {
	return New(CodeAttemptNotActive, "Attempt is not active").SetHTTPStatus(http.StatusForbidden)
}

func ErrAlreadySubmitted() *Error {
	return New(CodeAlreadySubmitted, "Attempt already submitted").SetHTTPStatus(http.StatusForbidden)
}

func ErrForbidden() *Error {
	return New(CodeForbidden, "Forbidden").SetHTTPStatus(http.StatusForbidden)
}

func ErrNotFound(what string) *Error {
	return New(CodeNotFound, what+" not found").SetHTTPStatus(http.StatusNotFound)
}

// ErrTransientStorage marks a recoverable persistence failure; autosave clients
// re-queue the edit instead of surfacing it as data loss.
func ErrTransientStorage(err error) *Error {
	return New(CodeTransientStorage, "Temporary storage failure, please retry").
		SetHTTPStatus(http.StatusServiceUnavailable).
		SetDebug(err)
}

func ErrInternal(err error) *Error {
	return New(CodeInternal, "Internal server error").
		SetHTTPStatus(http.StatusInternalServerError).
		SetDebug(err)
}
