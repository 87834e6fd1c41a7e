package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperifyio/goarticle/internal/extract"
	"github.com/hyperifyio/goarticle/internal/generate"
	"github.com/hyperifyio/goarticle/internal/quota"
	"github.com/hyperifyio/goarticle/internal/style"
)

var (
	// ErrInvalidInput means the request did not name exactly one source or
	// no account.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSubscriptionRequired is matched by *SubscriptionRequiredError.
	ErrSubscriptionRequired = errors.New("article requires a subscription")
	// ErrContentTooShort means extraction returned too little text to work on.
	ErrContentTooShort = errors.New("content too short")
	// ErrQuotaExceeded is matched by *QuotaExceededError.
	ErrQuotaExceeded = errors.New("token limit reached")
)

// SubscriptionRequiredError carries whatever the extractor recovered so the
// caller can offer a manual paste.
type SubscriptionRequiredError struct {
	Result extract.Result
}

func (e *SubscriptionRequiredError) Error() string { return ErrSubscriptionRequired.Error() }

func (e *SubscriptionRequiredError) Is(target error) bool { return target == ErrSubscriptionRequired }

// QuotaExceededError carries the usage report that blocked the request.
type QuotaExceededError struct {
	Report quota.UsageReport
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %d of %d tokens used (%s)", ErrQuotaExceeded, e.Report.TokensUsed, e.Report.Limit, e.Report.Tier)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// Problem is the user-facing description of an outcome.
type Problem struct {
	Code    string
	Message string
	Action  string
	Status  int
}

// Stable problem codes.
const (
	CodeOK                      = "OK"
	CodeSubscriptionRequired    = "SUBSCRIPTION_REQUIRED"
	CodeTokenLimitReached       = "TOKEN_LIMIT_REACHED"
	CodeContentExtractionFailed = "CONTENT_EXTRACTION_FAILED"
	CodeInvalidURL              = "INVALID_URL"
	CodeEmptyContent            = "EMPTY_CONTENT"
	CodeGenerationUnavailable   = "GENERATION_UNAVAILABLE"
	CodeGenerationFailed        = "GENERATION_FAILED"
	CodeUnknownStyle            = "UNKNOWN_STYLE"
	CodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeNetworkError            = "NETWORK_ERROR"
	CodeUnknownError            = "UNKNOWN_ERROR"
)

var problems = map[string]Problem{
	CodeOK: {
		Code: CodeOK, Status: http.StatusOK,
	},
	CodeSubscriptionRequired: {
		Code:    CodeSubscriptionRequired,
		Message: "This article requires a subscription to the source website.",
		Action:  "Sign in to the website and paste the article text instead.",
		Status:  http.StatusPaymentRequired,
	},
	CodeTokenLimitReached: {
		Code:    CodeTokenLimitReached,
		Message: "You've used all your tokens. Upgrade to continue translating articles.",
		Action:  "Upgrade to the paid plan.",
		Status:  http.StatusForbidden,
	},
	CodeContentExtractionFailed: {
		Code:    CodeContentExtractionFailed,
		Message: "We couldn't extract the article content. The website might be blocking access.",
		Action:  "Try pasting the article text directly instead.",
		Status:  http.StatusBadRequest,
	},
	CodeInvalidURL: {
		Code:    CodeInvalidURL,
		Message: "The URL you provided is invalid or not accessible.",
		Action:  "Check the URL and try again.",
		Status:  http.StatusBadRequest,
	},
	CodeEmptyContent: {
		Code:    CodeEmptyContent,
		Message: "The article appears to be empty or too short to process.",
		Action:  "Check the URL or paste the full text directly.",
		Status:  http.StatusBadRequest,
	},
	CodeGenerationUnavailable: {
		Code:    CodeGenerationUnavailable,
		Message: "The translation service is not set up.",
		Action:  "Configure a generation backend (LLM_BASE_URL, LLM_API_KEY).",
		Status:  http.StatusServiceUnavailable,
	},
	CodeGenerationFailed: {
		Code:    CodeGenerationFailed,
		Message: "We encountered an error while processing your article. This might be temporary.",
		Action:  "Try again in a few moments.",
		Status:  http.StatusBadGateway,
	},
	CodeUnknownStyle: {
		Code:    CodeUnknownStyle,
		Message: "The requested writing style does not exist.",
		Action:  "Pick one of the listed styles.",
		Status:  http.StatusBadRequest,
	},
	CodeAccountNotFound: {
		Code:    CodeAccountNotFound,
		Message: "The account could not be found.",
		Action:  "Sign in again or create the account.",
		Status:  http.StatusNotFound,
	},
	CodeInvalidInput: {
		Code:    CodeInvalidInput,
		Message: "The information you provided is invalid.",
		Action:  "Provide either a URL or article text, not both.",
		Status:  http.StatusBadRequest,
	},
	CodeNetworkError: {
		Code:    CodeNetworkError,
		Message: "The request timed out.",
		Action:  "Check your connection and try again.",
		Status:  http.StatusServiceUnavailable,
	},
	CodeUnknownError: {
		Code:    CodeUnknownError,
		Message: "Something went wrong.",
		Action:  "Try again later.",
		Status:  http.StatusInternalServerError,
	},
}

// Describe maps an error from Process to its stable problem. A nil error is
// CodeOK.
func Describe(err error) Problem {
	return problems[codeFor(err)]
}

func codeFor(err error) string {
	var fe *extract.FetchError
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrSubscriptionRequired):
		return CodeSubscriptionRequired
	case errors.Is(err, ErrQuotaExceeded):
		return CodeTokenLimitReached
	case errors.Is(err, extract.ErrInvalidURL):
		return CodeInvalidURL
	case errors.As(err, &fe):
		return CodeContentExtractionFailed
	case errors.Is(err, ErrContentTooShort):
		return CodeEmptyContent
	case errors.Is(err, generate.ErrUnavailable):
		return CodeGenerationUnavailable
	case errors.Is(err, generate.ErrFailed):
		return CodeGenerationFailed
	case errors.Is(err, style.ErrUnknownStyle):
		return CodeUnknownStyle
	case errors.Is(err, quota.ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkError
	default:
		return CodeUnknownError
	}
}
