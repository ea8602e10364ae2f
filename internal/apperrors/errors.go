package apperrors

import "fmt"

// ErrNotFound represents an error when a required resource is missing,
// such as a source file that does not exist or a URL no extractor can handle.
type ErrNotFound struct {
	Resource string
	ID       interface{}
}

// Error implements the error interface.
func (e *ErrNotFound) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is allows for error checking with errors.Is().
func (e *ErrNotFound) Is(target error) bool {
	_, ok := target.(*ErrNotFound)
	return ok
}

// NewNotFoundError creates a new ErrNotFound.
func NewNotFoundError(resource string, id interface{}) *ErrNotFound {
	return &ErrNotFound{
		Resource: resource,
		ID:       id,
	}
}

// NewNoExtractorError reports that no registered extractor can handle the URL.
func NewNoExtractorError(url string) *ErrNotFound {
	return &ErrNotFound{
		Resource: "extractor for URL",
		ID:       url,
	}
}

// ErrInvalidInput represents a programmer-error-class condition: a value
// that should have been validated or resolved earlier is missing or malformed,
// e.g. a filename prefix that renders to empty.
type ErrInvalidInput struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ErrInvalidInput) Is(target error) bool {
	_, ok := target.(*ErrInvalidInput)
	return ok
}

// NewInvalidInputError creates a new ErrInvalidInput.
func NewInvalidInputError(field, reason string) *ErrInvalidInput {
	return &ErrInvalidInput{Field: field, Reason: reason}
}

// ErrAlreadyExists is returned when a resolved target path collides with an
// existing file and overwriting is disabled. The whole attempt for the node
// aborts; there is no silent renaming.
type ErrAlreadyExists struct {
	Path string
}

// Error implements the error interface.
func (e *ErrAlreadyExists) Error() string {
	return fmt.Sprintf("file already exists: %s", e.Path)
}

// Is allows for error checking with errors.Is().
func (e *ErrAlreadyExists) Is(target error) bool {
	_, ok := target.(*ErrAlreadyExists)
	return ok
}

// NewAlreadyExistsError creates a new ErrAlreadyExists.
func NewAlreadyExistsError(path string) *ErrAlreadyExists {
	return &ErrAlreadyExists{Path: path}
}

// ErrPermissionDenied is returned when a destination directory cannot be
// created or written.
type ErrPermissionDenied struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *ErrPermissionDenied) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permission denied for %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("permission denied for %s", e.Path)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrPermissionDenied) Unwrap() error {
	return e.Cause
}

// Is allows for error checking with errors.Is().
func (e *ErrPermissionDenied) Is(target error) bool {
	_, ok := target.(*ErrPermissionDenied)
	return ok
}

// NewPermissionDeniedError creates a new ErrPermissionDenied.
func NewPermissionDeniedError(path string, cause error) *ErrPermissionDenied {
	return &ErrPermissionDenied{Path: path, Cause: cause}
}

// ErrInconsistent reports a post-move verification failure: the filesystem is
// not in the state the mover expects after an operation. Always fatal, always
// triggers rollback.
type ErrInconsistent struct {
	Detail string
}

// Error implements the error interface.
func (e *ErrInconsistent) Error() string {
	return fmt.Sprintf("inconsistent filesystem state: %s", e.Detail)
}

// Is allows for error checking with errors.Is().
func (e *ErrInconsistent) Is(target error) bool {
	_, ok := target.(*ErrInconsistent)
	return ok
}

// NewInconsistentError creates a new ErrInconsistent.
func NewInconsistentError(detail string) *ErrInconsistent {
	return &ErrInconsistent{Detail: detail}
}

// ErrUserCancelled is returned when the user aborts an interactive prompt.
// It propagates through all enclosing calls and terminates the whole request,
// not just the current node.
type ErrUserCancelled struct {
	Action string
}

// Error implements the error interface.
func (e *ErrUserCancelled) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("cancelled by user: %s", e.Action)
	}
	return "cancelled by user"
}

// Is allows for error checking with errors.Is().
func (e *ErrUserCancelled) Is(target error) bool {
	_, ok := target.(*ErrUserCancelled)
	return ok
}

// NewUserCancelledError creates a new ErrUserCancelled.
func NewUserCancelledError(action string) *ErrUserCancelled {
	return &ErrUserCancelled{Action: action}
}

// ErrEmptyResult is returned when an extractor handles a URL but finds no
// downloadable items.
type ErrEmptyResult struct {
	Extractor string
	URL       string
}

// Error implements the error interface.
func (e *ErrEmptyResult) Error() string {
	return fmt.Sprintf("extractor %s found nothing at %s", e.Extractor, e.URL)
}

// Is allows for error checking with errors.Is().
func (e *ErrEmptyResult) Is(target error) bool {
	_, ok := target.(*ErrEmptyResult)
	return ok
}

// NewEmptyResultError creates a new ErrEmptyResult.
func NewEmptyResultError(extractor, url string) *ErrEmptyResult {
	return &ErrEmptyResult{Extractor: extractor, URL: url}
}
