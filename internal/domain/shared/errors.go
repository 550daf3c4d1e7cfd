package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrOrderNotReady signals that the order or its items have not been
	// loaded yet. Callers exit quietly and expect a later re-trigger.
	ErrOrderNotReady = NewDomainError("ORDER_NOT_READY", "Order data not loaded yet")

	// ErrDuplicateSkip signals that an invoice already exists for the
	// package or a processing marker is active. Logged and skipped, never
	// surfaced as a failure.
	ErrDuplicateSkip = NewDomainError("DUPLICATE_SKIP", "Invoice already generated for this package")
)
