package llm

import (
	"context"
	"errors"
	"net"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

var (
	ErrAuth                 = errors.New("llm authentication failed")
	ErrRateLimited          = errors.New("llm rate limited")
	ErrEmptyResponse        = errors.New("llm empty response")
	ErrUnsupportedParameter = errors.New("llm unsupported parameter")
)

type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureTimeout
	FailureAuth
	FailureRateLimited
	FailureNetwork
	FailureEmpty
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureAuth:
		return "auth"
	case FailureRateLimited:
		return "rate_limited"
	case FailureNetwork:
		return "network"
	case FailureEmpty:
		return "empty_response"
	default:
		return "other"
	}
}

// Failure is a classified invocation error. Phase names which call failed
// (solve, classify, ocr, detect, extract, probe).
type Failure struct {
	Kind  FailureKind
	Phase string
	Err   error
}

func (f *Failure) Error() string {
	return "llm " + f.Kind.String() + " during " + f.Phase + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the coordinator may re-attempt after this
// failure. Only hard transport-level failures qualify.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailureTimeout, FailureNetwork, FailureEmpty:
		return true
	default:
		return false
	}
}

// Classify maps a raw provider error onto the failure taxonomy.
func Classify(phase string, err error) *Failure {
	kind := FailureOther

	var apiErr *openai.APIError
	var gErr *googleapi.Error
	var aErr *anthropic.APIError
	var netErr net.Error

	switch {
	case errors.Is(err, ErrAuth):
		kind = FailureAuth
	case errors.Is(err, ErrRateLimited):
		kind = FailureRateLimited
	case errors.Is(err, ErrEmptyResponse):
		kind = FailureEmpty
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &apiErr):
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			kind = FailureAuth
		case 429:
			kind = FailureRateLimited
		case 500, 502, 503, 504:
			kind = FailureNetwork
		}
	case errors.As(err, &gErr):
		switch gErr.Code {
		case 401, 403:
			kind = FailureAuth
		case 429:
			kind = FailureRateLimited
		case 500, 502, 503, 504:
			kind = FailureNetwork
		}
	case errors.As(err, &aErr):
		switch {
		case aErr.IsAuthenticationErr():
			kind = FailureAuth
		case aErr.IsRateLimitErr():
			kind = FailureRateLimited
		case aErr.IsApiErr(), aErr.IsOverloadedErr():
			kind = FailureNetwork
		}
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			kind = FailureTimeout
		} else {
			kind = FailureNetwork
		}
	}

	return &Failure{Kind: kind, Phase: phase, Err: err}
}
