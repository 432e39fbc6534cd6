package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/cupogo/andvari/models/oid"

	"github.com/bizflow/bizflow/pkg/models/aigc"
)

// Turn is one message of a conversation. An assistant turn starts empty and
// grows by Append while its stream is in flight; content is only ever
// appended, never truncated, so a cancelled turn keeps whatever arrived.
type Turn struct {
	ID        string
	Role      string
	CreatedAt time.Time

	mu      sync.RWMutex
	content strings.Builder

	// seed marks local-only furniture like the greeting, excluded from
	// upstream replay
	seed bool
}

func NewTurn(role, content string) *Turn {
	t := &Turn{
		ID:        oid.NewID(oid.OtEvent).String(),
		Role:      role,
		CreatedAt: time.Now(),
	}
	if len(content) > 0 {
		t.content.WriteString(content)
	}
	return t
}

func newSeedTurn(content string) *Turn {
	t := NewTurn(aigc.RoleAssistant, content)
	t.seed = true
	return t
}

// Append adds one streamed fragment to the turn.
func (t *Turn) Append(frag string) {
	t.mu.Lock()
	t.content.WriteString(frag)
	t.mu.Unlock()
}

// Text returns the content accumulated so far.
func (t *Turn) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.content.String()
}

// Message renders the turn as a wire message.
func (t *Turn) Message() aigc.Message {
	return aigc.Message{ID: t.ID, Role: t.Role, Content: t.Text()}
}
