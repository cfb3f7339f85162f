package apperror

// AppError is a custom error type that includes an HTTP status code and an optional reason code.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Reason  string // Machine-readable reason, empty when the status says enough
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithReason attaches a reason code and returns the same error.
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	return e
}
