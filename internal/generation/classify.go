package generation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"google.golang.org/api/googleapi"
)

// FailureKind groups generator errors by what the patient should be told.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureMissingCredential FailureKind = "missing_credential"
	FailureQuota             FailureKind = "quota"
	FailureTimeout           FailureKind = "timeout"
	FailureGeneric           FailureKind = "generic"
)

// Classify maps a generator error onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrMissingCredential) {
		return FailureMissingCredential
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusTooManyRequests:
			return FailureQuota
		case http.StatusUnauthorized, http.StatusForbidden:
			return FailureMissingCredential
		case http.StatusGatewayTimeout:
			return FailureTimeout
		}
	}

	var throttled *brtypes.ThrottlingException
	var quota *brtypes.ServiceQuotaExceededException
	if errors.As(err, &throttled) || errors.As(err, &quota) {
		return FailureQuota
	}
	var denied *brtypes.AccessDeniedException
	if errors.As(err, &denied) {
		return FailureMissingCredential
	}
	var modelTimeout *brtypes.ModelTimeoutException
	if errors.As(err, &modelTimeout) {
		return FailureTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return FailureQuota
	case strings.Contains(msg, "api key"):
		return FailureMissingCredential
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return FailureTimeout
	}
	return FailureGeneric
}
