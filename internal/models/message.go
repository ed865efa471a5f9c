package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind tags the payload carried by a message.
type ContentKind string

const (
	ContentKindText     ContentKind = "text"
	ContentKindProgress ContentKind = "progress"
	ContentKindFindings ContentKind = "findings"
	ContentKindArtifact ContentKind = "artifact"
	ContentKindOrders   ContentKind = "orders"
)

// Content is the closed set of message payloads. Only types in this package
// implement it.
type Content interface {
	Kind() ContentKind
	// Summary renders the payload as a single line of plain text.
	Summary() string
	sealed()
}

// TextContent is a plain text reply.
type TextContent struct {
	Text string `json:"text"`
}

func (TextContent) Kind() ContentKind { return ContentKindText }
func (c TextContent) Summary() string { return c.Text }
func (TextContent) sealed()           {}

// ProgressContent is a "system thinking" notice shown while a flow works.
type ProgressContent struct {
	Text string `json:"text"`
}

func (ProgressContent) Kind() ContentKind { return ContentKindProgress }
func (c ProgressContent) Summary() string { return c.Text }
func (ProgressContent) sealed()           {}

// FindingsContent enumerates items a scan turned up.
type FindingsContent struct {
	Headline string    `json:"headline"`
	Findings []Finding `json:"findings"`
	Question string    `json:"question,omitempty"`
}

func (FindingsContent) Kind() ContentKind { return ContentKindFindings }
func (c FindingsContent) Summary() string {
	return fmt.Sprintf("%s (%d items)", c.Headline, len(c.Findings))
}
func (FindingsContent) sealed() {}

// ArtifactContent reports a completed execution and the artifact it produced.
type ArtifactContent struct {
	Headline string    `json:"headline"`
	Steps    []string  `json:"steps,omitempty"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

func (ArtifactContent) Kind() ContentKind { return ContentKindArtifact }
func (c ArtifactContent) Summary() string {
	if c.Artifact == nil {
		return c.Headline
	}
	return fmt.Sprintf("%s [%s]", c.Headline, c.Artifact.Name)
}
func (ArtifactContent) sealed() {}

// OrdersContent is a snapshot of orders listed for review.
type OrdersContent struct {
	Orders []PendingOrder `json:"orders"`
}

func (OrdersContent) Kind() ContentKind { return ContentKindOrders }
func (c OrdersContent) Summary() string {
	return fmt.Sprintf("Pending Review (%d)", len(c.Orders))
}
func (OrdersContent) sealed() {}

// Action is a button attached to a message.
type Action struct {
	ID    ActionID `json:"id"`
	Label string   `json:"label"`
}

// Message is one entry in a conversation log. Messages are never mutated
// after they are appended.
type Message struct {
	ID        string
	Role      Role
	Content   Content
	Actions   []Action
	CreatedAt time.Time
}

// Text returns the message as plain text.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.Summary()
}

type messageJSON struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Kind      ContentKind     `json:"kind"`
	Content   json.RawMessage `json:"content"`
	Actions   []Action        `json:"actions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON encodes the content variant alongside its kind tag.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Content == nil {
		return nil, fmt.Errorf("message %s has no content", m.ID)
	}
	raw, err := json.Marshal(m.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s content: %w", m.Content.Kind(), err)
	}
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Kind:      m.Content.Kind(),
		Content:   raw,
		Actions:   m.Actions,
		CreatedAt: m.CreatedAt,
	})
}

// UnmarshalJSON decodes a message, dispatching on the kind tag.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content, err := DecodeContent(wire.Kind, wire.Content)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        wire.ID,
		Role:      wire.Role,
		Content:   content,
		Actions:   wire.Actions,
		CreatedAt: wire.CreatedAt,
	}
	return nil
}

// DecodeContent decodes a raw payload of the given kind.
func DecodeContent(kind ContentKind, raw []byte) (Content, error) {
	var (
		content Content
		err     error
	)
	switch kind {
	case ContentKindText:
		var c TextContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentKindProgress:
		var c ProgressContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentKindFindings:
		var c FindingsContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentKindArtifact:
		var c ArtifactContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentKindOrders:
		var c OrdersContent
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", kind, err)
	}
	return content, nil
}
