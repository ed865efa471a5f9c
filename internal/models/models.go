// Package models defines the core data structures for OpsCopilot.
//
// It includes conversation messages, scripted flow state, the seed domain data
// the flows operate on, and the request/response envelopes shared by the API.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MaxMessageTextLength defines the maximum allowed length for a submitted utterance
	MaxMessageTextLength = 4096
	// MaxChangeRequestLength defines the maximum allowed length for a change request description
	MaxChangeRequestLength = 2000
)

// Error variables for better error handling and testability
var (
	ErrMessageTooLong       = errors.New("message text exceeds maximum length")
	ErrMissingAction        = errors.New("action is required")
	ErrUnknownAction        = errors.New("unknown action")
	ErrMissingOrderID       = errors.New("order_id is required for order actions")
	ErrChangeRequestTooLong = errors.New("change request exceeds maximum length")
	ErrInvalidAppearance    = errors.New("appearance must be one of light, dark, inherit")
)

// SubmitRequest is the body of POST /sessions/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// Validate checks length limits. Blank text is valid and ignored by the controller.
func (r *SubmitRequest) Validate() error {
	if len(r.Text) > MaxMessageTextLength {
		return ErrMessageTooLong
	}
	return nil
}

// ActionRequest is a button click routed to the active flow.
type ActionRequest struct {
	Action  ActionID `json:"action"`
	OrderID string   `json:"order_id,omitempty"` // approve_order, request_order_changes
	Text    string   `json:"text,omitempty"`     // submit_changes
}

// Validate performs structural validation; availability is checked by the flow.
func (r *ActionRequest) Validate() error {
	if r.Action == "" {
		return ErrMissingAction
	}
	if !IsValidAction(r.Action) {
		return ErrUnknownAction
	}
	if r.Action.TargetsOrder() && strings.TrimSpace(r.OrderID) == "" {
		return ErrMissingOrderID
	}
	if len(r.Text) > MaxChangeRequestLength {
		return ErrChangeRequestTooLong
	}
	return nil
}

// ThemeRequest is the body of PUT /preferences/theme.
type ThemeRequest struct {
	Appearance Appearance `json:"appearance"`
}

// Validate checks the requested appearance.
func (r *ThemeRequest) Validate() error {
	if !r.Appearance.Valid() {
		return ErrInvalidAppearance
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusAccepted indicates the request started asynchronous assistant work.
	APIStatusAccepted APIStatus = "accepted"
)

// APIResponse represents a standard API response structure.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Accepted creates a response for requests whose assistant reply arrives later.
func Accepted(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusAccepted).
		WithResult(result).
		Build()
}
