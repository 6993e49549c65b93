package models

import "strings"

// Chat roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message             string        `json:"message"`
	Flow                *Flow         `json:"flow"`
	ConversationHistory []ChatMessage `json:"conversationHistory"`
	// SessionID and Seq let the server flag replies that a newer request has superseded.
	SessionID string `json:"sessionId,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
}

// Validate performs validation on a ChatRequest.
func (r *ChatRequest) Validate() error {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return ErrEmptyMessage
	}
	if len(msg) > MaxChatMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the body returned for a successful chat turn.
type ChatResponse struct {
	Message     string           `json:"message"`
	FlowChanges *EditInstruction `json:"flowChanges"`
	Flow        *Flow            `json:"flow,omitempty"`
	Seq         int64            `json:"seq,omitempty"`
	Stale       bool             `json:"stale,omitempty"`
}

// Direct edit actions triggered by UI buttons.
const (
	EditActionMoveUp   = "moveUp"
	EditActionMoveDown = "moveDown"
	EditActionRemove   = "remove"
	EditActionSwap     = "swap"
)

// EditFlowRequest is the body of POST /flows/edit.
type EditFlowRequest struct {
	Flow    *Flow      `json:"flow"`
	Action  string     `json:"action"`
	StopID  string     `json:"stopId"`
	NewStop *StopPatch `json:"newStop,omitempty"`
}

// Validate performs validation on an EditFlowRequest.
func (r *EditFlowRequest) Validate() error {
	if r.Flow == nil {
		return ErrMissingFlow
	}
	switch r.Action {
	case EditActionMoveUp, EditActionMoveDown, EditActionRemove:
	case EditActionSwap:
		if r.NewStop == nil {
			return ErrMissingReplacement
		}
	default:
		return ErrUnknownEditAction
	}
	if r.StopID == "" {
		return ErrMissingStopID
	}
	return nil
}

// ApplyChangesRequest is the body of POST /flows/apply.
type ApplyChangesRequest struct {
	Flow        *Flow            `json:"flow"`
	FlowChanges *EditInstruction `json:"flowChanges"`
}

// FlowResponse wraps a flow returned from the edit endpoints.
type FlowResponse struct {
	Flow Flow `json:"flow"`
}

// ShareFlowResponse is returned after storing a shared flow.
type ShareFlowResponse struct {
	ID string `json:"id"`
}

// SendFlowRequest is the body of POST /flows/{id}/send.
type SendFlowRequest struct {
	To []string `json:"to"`
}

// Validate performs validation on a SendFlowRequest.
func (r *SendFlowRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrEmptyRecipients
	}
	if len(r.To) > MaxCrewSize {
		return ErrInvalidCrewSize
	}
	return nil
}

// SendFlowResponse reports per-recipient delivery results.
type SendFlowResponse struct {
	Sent   []string          `json:"sent"`
	Failed map[string]string `json:"failed,omitempty"`
}
