package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

const (
	callErrorMessageTemplateConstant           = "%s failed (%s): %s"
	callErrorWithStatusMessageTemplateConstant = "%s failed (%s, status %d): %s"
	nameFieldConstant                          = "name"
	alreadyExistsErrorCodeConstant             = "already_exists"
	alreadyExistsMessageFragmentConstant       = "already exists"
)

// FailureKind classifies remote call failures by the action they require.
type FailureKind string

// Failure kinds surfaced by the client.
const (
	// FailureKindAuthorization covers credential problems; the run must abort.
	FailureKindAuthorization FailureKind = "authorization"
	// FailureKindAlreadyExists covers creation conflicts; callers treat it as success.
	FailureKindAlreadyExists FailureKind = "already_exists"
	// FailureKindNotFound covers missing remote resources.
	FailureKindNotFound FailureKind = "not_found"
	// FailureKindTransient covers connectivity problems, server errors, and
	// remote rate limiting; the run aborts and a re-run resumes.
	FailureKindTransient FailureKind = "transient"
	// FailureKindRemoteRejection covers other client-side rejections; only the
	// affected repository fails.
	FailureKindRemoteRejection FailureKind = "remote_rejection"
)

// CallError describes a classified remote call failure.
type CallError struct {
	Operation  OperationName
	Kind       FailureKind
	StatusCode int
	Cause      error
}

// Error describes the call failure.
func (callError CallError) Error() string {
	if callError.StatusCode == 0 {
		return fmt.Sprintf(callErrorMessageTemplateConstant, callError.Operation, callError.Kind, callError.Cause)
	}
	return fmt.Sprintf(callErrorWithStatusMessageTemplateConstant, callError.Operation, callError.Kind, callError.StatusCode, callError.Cause)
}

// Unwrap exposes the underlying cause.
func (callError CallError) Unwrap() error {
	return callError.Cause
}

// classifyFailure wraps a go-github error in a CallError carrying the failure
// kind. Context cancellation passes through undecorated so callers can match
// it with errors.Is.
func classifyFailure(operation OperationName, failure error) error {
	if errors.Is(failure, context.Canceled) || errors.Is(failure, context.DeadlineExceeded) {
		return failure
	}

	var rateLimitError *github.RateLimitError
	if errors.As(failure, &rateLimitError) {
		return CallError{Operation: operation, Kind: FailureKindTransient, StatusCode: responseStatusCode(rateLimitError.Response), Cause: failure}
	}

	var abuseRateLimitError *github.AbuseRateLimitError
	if errors.As(failure, &abuseRateLimitError) {
		return CallError{Operation: operation, Kind: FailureKindTransient, StatusCode: responseStatusCode(abuseRateLimitError.Response), Cause: failure}
	}

	var errorResponse *github.ErrorResponse
	if errors.As(failure, &errorResponse) {
		statusCode := responseStatusCode(errorResponse.Response)
		return CallError{Operation: operation, Kind: classifyStatusCode(statusCode, errorResponse), StatusCode: statusCode, Cause: failure}
	}

	return CallError{Operation: operation, Kind: FailureKindTransient, Cause: failure}
}

func classifyStatusCode(statusCode int, errorResponse *github.ErrorResponse) FailureKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FailureKindAuthorization
	case statusCode == http.StatusNotFound:
		return FailureKindNotFound
	case statusCode == http.StatusUnprocessableEntity && hasAlreadyExistsViolation(errorResponse):
		return FailureKindAlreadyExists
	case statusCode >= http.StatusInternalServerError:
		return FailureKindTransient
	default:
		return FailureKindRemoteRejection
	}
}

func hasAlreadyExistsViolation(errorResponse *github.ErrorResponse) bool {
	for _, violation := range errorResponse.Errors {
		if violation.Code == alreadyExistsErrorCodeConstant {
			return true
		}
		if violation.Field == nameFieldConstant && strings.Contains(strings.ToLower(violation.Message), alreadyExistsMessageFragmentConstant) {
			return true
		}
	}
	return false
}

func responseStatusCode(response *http.Response) int {
	if response == nil {
		return 0
	}
	return response.StatusCode
}
