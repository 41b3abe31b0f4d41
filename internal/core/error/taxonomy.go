package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the conversation pipeline. Callers branch on these with
// errors.Is; the AppError wrapper carries the safe message and status.
var (
	// ErrDomainRejection marks an utterance outside the sales-data domain.
	ErrDomainRejection = errors.New("domain rejection")
	// ErrGuardrailViolation marks SQL that failed the read-only check.
	ErrGuardrailViolation = errors.New("sql guardrail violation")
	// ErrTemplateNotFound marks a template id missing from the registry.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrExtractionParse marks malformed structured output from an extractor.
	ErrExtractionParse = errors.New("extraction parse failure")
	// ErrRetryExhaustion marks a parameter-collection loop that hit its cap.
	ErrRetryExhaustion = errors.New("parameter retries exhausted")
	// ErrExecutionFailure marks a failed database execution.
	ErrExecutionFailure = errors.New("query execution failure")
)

// DomainRejection builds the error for an out-of-domain request.
func DomainRejection(detail string) error {
	return New(fmt.Errorf("%w: %s", ErrDomainRejection, detail), http.StatusUnprocessableEntity, "request outside the sales data domain")
}

// GuardrailViolation builds the error for a rejected SQL statement.
func GuardrailViolation(detail string) error {
	return New(fmt.Errorf("%w: %s", ErrGuardrailViolation, detail), http.StatusForbidden, "statement rejected by read-only guardrail")
}

// TemplateNotFound builds the error for an unknown template id.
func TemplateNotFound(id string) error {
	return New(fmt.Errorf("%w: %q", ErrTemplateNotFound, id), http.StatusNotFound, "query template not found")
}

// ExtractionParse builds the error for unusable classifier or extractor output.
func ExtractionParse(err error) error {
	return New(fmt.Errorf("%w: %v", ErrExtractionParse, err), http.StatusUnprocessableEntity, "could not parse model output")
}

// RetryExhaustion builds the error for a collection loop that gave up.
func RetryExhaustion(attempts int) error {
	return New(fmt.Errorf("%w after %d attempts", ErrRetryExhaustion, attempts), http.StatusConflict, "could not collect required parameters")
}

// ExecutionFailure wraps a database execution error.
func ExecutionFailure(err error) error {
	return New(fmt.Errorf("%w: %v", ErrExecutionFailure, err), http.StatusBadGateway, DatabaseErrorMessage)
}
