package errors

import (
	stderrors "errors"
	"net/http"
)

// Sentinel kinds. Callers match them with errors.Is after any amount of wrapping.
var (
	ErrNotFound                  = stderrors.New("not found")
	ErrConflict                  = stderrors.New("conflict")
	ErrPreconditionFailed        = stderrors.New("precondition failed")
	ErrClassifierUnavailable     = stderrors.New("classifier unavailable")
	ErrClassifierResponseInvalid = stderrors.New("classifier response invalid")
	ErrStore                     = stderrors.New("store error")

	// ErrValidationKind is matched by every *ErrValidation.
	ErrValidationKind = stderrors.New("validation error")
)

type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ErrValidation) Is(target error) bool {
	return target == ErrValidationKind
}

// Validation is shorthand for &ErrValidation{Field: field, Message: message}.
func Validation(field, message string) error {
	return &ErrValidation{Field: field, Message: message}
}

// Kind returns a short machine-readable name for the error family of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrValidationKind):
		return "validation_error"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrConflict):
		return "conflict"
	case stderrors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case stderrors.Is(err, ErrClassifierUnavailable):
		return "classifier_unavailable"
	case stderrors.Is(err, ErrClassifierResponseInvalid):
		return "classifier_response_invalid"
	case stderrors.Is(err, ErrStore):
		return "store_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps an error family onto the status code returned by the API.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation_error":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "conflict", "precondition_failed":
		return http.StatusConflict
	case "classifier_unavailable":
		return http.StatusServiceUnavailable
	case "classifier_response_invalid":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
