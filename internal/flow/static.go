package flow

import (
	"context"
)

// FallbackText is the canned reply for utterances no scripted flow handles.
const FallbackText = "I'm tuned to help with specific operational tasks right now. Try asking me to analyze order discrepancies or summarize recent activity."

// CannedResponder always returns FallbackText.
type CannedResponder struct{}

// Respond returns the canned fallback reply.
func (CannedResponder) Respond(ctx context.Context, utterance string) (string, error) {
	return FallbackText, nil
}
