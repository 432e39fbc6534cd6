package web

import (
	"github.com/bizflow/bizflow/pkg/models/aigc"
)

const esDone = "[DONE]"

// ChatRequest is the relay request body. ConversationID is optional and
// lenient: front-ends send it as a string, some clients as a number.
type ChatRequest struct {
	Messages       aigc.Messages `json:"messages"`
	CurrentPage    string        `json:"currentPage,omitempty"`
	ConversationID any           `json:"conversationId,omitempty"`
}

// ChatFragment is one normalized stream event: data: {"content": ...}
type ChatFragment struct {
	Content string `json:"content"`
}
