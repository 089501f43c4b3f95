// Package chat answers reader questions about a specific uploaded document,
// grounding the provider's completion in book metadata and bounded
// conversation history.
package chat

import (
	"time"
)

// MessageRole labels one side of a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one turn of a (profile, document) conversation.
// Append-only; messages are totally ordered by creation time, and the user
// turn for a question is always written before the assistant turn answering
// it.
type ConversationMessage struct {
	ID         string      `gorm:"primaryKey;size:36"`
	ProfileID  string      `gorm:"size:36;index:idx_conversation_scope"`
	DocumentID string      `gorm:"size:36;index:idx_conversation_scope"`
	Role       MessageRole `gorm:"size:16"`
	Content    string
	CreatedAt  time.Time
}

// TableName returns the database table name.
func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

// ChunkMatch is one similarity-search hit inside a document.
type ChunkMatch struct {
	ChunkID string `gorm:"column:id" json:"chunk_id"`
	Content string `gorm:"column:content" json:"content"`
}
