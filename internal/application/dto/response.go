package dto

import (
	"time"

	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// APIResponse is the envelope for every HTTP response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO carries a stable error code plus human-readable text.
type ErrorDTO struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HealthResponse reports service liveness and per-dependency state.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewSuccessResponse wraps payload data in the response envelope.
func NewSuccessResponse(data interface{}, traceID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorResponse wraps an error in the response envelope. WGErrors
// keep their code and metadata; other errors collapse to internal.
func NewErrorResponse(err error, traceID string) *APIResponse {
	dto := &ErrorDTO{
		Code:    "internal_error",
		Message: "An unexpected error occurred",
	}
	if wgErr, ok := wgerrors.AsWGError(err); ok {
		dto.Code = string(wgErr.Code())
		dto.Message = wgErr.Error()
		dto.Description = wgErr.Description()
		dto.Metadata = wgErr.Metadata()
	}
	return &APIResponse{
		Success:   false,
		Error:     dto,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}
