package router

import (
	"fmt"

	"github.com/kari-ai/core/internal/domain"
)

// DegradedResponse is the fixed-structure offline reply of spec §4.7a.
type DegradedResponse struct {
	Message string
	Reason  domain.DegradedReason
}

// degradedResponse builds the deterministic degraded-mode reply from the
// accumulated errors of an exhausted fallback chain (spec §4.7a, P7).
func degradedResponse(errs []error) DegradedResponse {
	reason := domain.InferDegradedReason(errs)
	return DegradedResponse{
		Message: fmt.Sprintf("unable to reach an inference provider right now (%s)", reason),
		Reason:  reason,
	}
}
