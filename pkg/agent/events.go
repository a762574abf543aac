package agent

import (
	"encoding/json"
	"strings"
)

// EventType identifies a normalized reasoning engine event.
type EventType string

const (
	// EventHistoryItemAdded carries a conversational item appended to the
	// engine's history.
	EventHistoryItemAdded EventType = "history_item_added"

	// EventHandoff signals the conversation is being transferred to a human.
	EventHandoff EventType = "handoff"

	// EventToolCall carries a structured action request from the engine.
	EventToolCall EventType = "tool_call"

	// EventAudioDelta carries a chunk of synthesized speech for the caller.
	EventAudioDelta EventType = "audio_delta"
)

// Event is one entry in the engine's ordered event sequence as seen by the
// call session orchestrator.
type Event struct {
	Type     EventType
	Item     *ConversationItem
	ToolCall *ToolCall
	Audio    string // base64 payload for audio deltas
}

// ToolCall is a schema-validated action request issued by the engine.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// ContentPart is one fragment of a conversational item's content.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ConversationItem is one entry in the engine's conversation history.
type ConversationItem struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type,omitempty"`
	Role       string        `json:"role,omitempty"`
	Content    []ContentPart `json:"content,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
}

// RoleLabel returns the speaker label for a transcript line: the item's
// role when present, else its type.
func (i *ConversationItem) RoleLabel() string {
	if i.Role != "" {
		return i.Role
	}
	return i.Type
}

// Text extracts the item's spoken or written content. Textual fragments are
// joined with single spaces, empty fragments skipped. When no fragment
// carries text, the item-level transcript field is used. An empty result
// means the item has nothing worth recording.
func (i *ConversationItem) Text() string {
	parts := make([]string, 0, len(i.Content))
	for _, c := range i.Content {
		text := c.Text
		if text == "" {
			text = c.Transcript
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return i.Transcript
	}
	return strings.Join(parts, " ")
}
