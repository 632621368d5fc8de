package adapter

import "context"

// ComputeRequest is the body posted to the external compute webhook.
type ComputeRequest struct {
	CompositeImageBase64 string `json:"composite_image_base64"`
	Prompt               string `json:"prompt"`
	ChatID               string `json:"chat_id"`
}

// ComputeWebhook forwards a job to the external compute service.
// Implementations return domain.ErrUpstreamTimeout when ctx expires and
// domain.ErrUpstreamFailure for transport errors or non-2xx responses.
type ComputeWebhook interface {
	// Configured reports whether a target URL is set.
	Configured() bool
	Submit(ctx context.Context, req ComputeRequest) error
}
