package models

import "time"

// Conversation status. Absent/unknown values are treated as open by the
// orchestrator so that legacy records without the field keep working.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Roles replayed verbatim to the completion API. Order of entries in a
// transcript is meaningful.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged transcript entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Customer identifies a WhatsApp contact. Phone is the natural key,
// E.164-like with a leading "+".
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ConversationRecord is the per-customer state persisted in the KV store.
// The first transcript entry is always the system prompt; the order code is
// embedded in it and later used as the closing signal.
type ConversationRecord struct {
	Status       string        `json:"status"`
	OrderCode    string        `json:"orderCode"`
	ChatAt       time.Time     `json:"chatAt"`
	Customer     Customer      `json:"customer"`
	Messages     []ChatMessage `json:"messages"`
	OrderSummary string        `json:"orderSummary,omitempty"`
}

// IsOpen reports whether the record can be reused for the next inbound
// message. A zero record (first contact) is not open: it has no transcript.
func (r ConversationRecord) IsOpen() bool {
	return r.Status == StatusOpen
}

// Append adds a transcript entry, preserving insertion order.
func (r *ConversationRecord) Append(role, content string) {
	r.Messages = append(r.Messages, ChatMessage{Role: role, Content: content})
}

// CustomerKey builds the KV key for a phone: customer:+5511999999999:chat.
func CustomerKey(phone string) string {
	return "customer:" + phone + ":chat"
}
