package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/cupogo/andvari/models/oid"

	"github.com/bizflow/bizflow/pkg/models/aigc"
)

// State is the lifecycle of a conversation's current turn.
type State string

// states
const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateSettled   State = "settled"
	StateCancelled State = "cancelled"
	StateErrored   State = "errored"
)

// terminal states are all equivalent: ready for the next Send.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateCancelled || s == StateErrored
}

// ErrBusy rejects a Send while a turn is already in flight.
var ErrBusy = errors.New("chat: a turn is already in flight")

// SessionOptions configures a conversation.
type SessionOptions struct {
	Client *Client

	// CurrentPage is sent with every turn so the relay can bind a page
	// context into the system prompt.
	CurrentPage string

	// Greeting seeds the visible transcript; it is never replayed upstream.
	Greeting string

	// OnFragment is the push-style notification; pull reads go through
	// Turn.Text.
	OnFragment func(frag string)
}

// Session owns one conversation: its ordered turns and the at-most-one
// in-flight stream.
type Session struct {
	id   oid.OID
	opts SessionOptions

	mu     sync.Mutex
	state  State
	turns  []*Turn
	handle *Handle
}

func NewSession(opts SessionOptions) *Session {
	if opts.Client == nil {
		opts.Client = NewClient("http://localhost:5001")
	}
	s := &Session{
		id:    oid.NewID(oid.OtEvent),
		opts:  opts,
		state: StateIdle,
	}
	if len(opts.Greeting) > 0 {
		s.turns = append(s.turns, newSeedTurn(opts.Greeting))
	}
	return s
}

func (s *Session) ID() string { return s.id.String() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns the transcript snapshot, greeting included.
func (s *Session) Turns() []*Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// historyLocked renders the turns replayed upstream: arrival order, seed
// turns excluded. Callers hold s.mu.
func (s *Session) historyLocked() aigc.Messages {
	msgs := make(aigc.Messages, 0, len(s.turns))
	for _, t := range s.turns {
		if t.seed {
			continue
		}
		msgs = append(msgs, aigc.Message{Role: t.Role, Content: t.Text()})
	}
	return msgs
}

// Send starts one turn: appends the user turn, opens a stream filling a new
// assistant turn, and returns that pending turn. While a turn is sending or
// streaming, further Sends are rejected with ErrBusy and nothing is issued.
func (s *Session) Send(ctx context.Context, text string) (*Turn, error) {
	s.mu.Lock()
	if s.state == StateSending || s.state == StateStreaming {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = StateSending

	s.turns = append(s.turns, NewTurn(aigc.RoleUser, text))
	history := s.historyLocked()
	pending := NewTurn(aigc.RoleAssistant, "")
	s.turns = append(s.turns, pending)
	s.mu.Unlock()

	h, err := s.opts.Client.Send(ctx, Request{
		Messages:       history,
		CurrentPage:    s.opts.CurrentPage,
		ConversationID: s.id.String(),
	}, pending, s.opts.OnFragment)
	if err != nil {
		s.setState(StateErrored)
		return pending, err
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.handle = h
	s.mu.Unlock()

	go s.watch(h)
	return pending, nil
}

// Cancel aborts the in-flight stream; meaningless in any other state.
func (s *Session) Cancel() {
	s.mu.Lock()
	h := s.handle
	streaming := s.state == StateStreaming
	s.mu.Unlock()
	if streaming && h != nil {
		h.Cancel()
	}
}

// Wait blocks until the in-flight turn (if any) reached a terminal state.
func (s *Session) Wait() error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	<-h.Done()
	return h.Err()
}

func (s *Session) watch(h *Handle) {
	<-h.Done()
	err := h.Err()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
	switch {
	case err == nil:
		s.state = StateSettled
	case errors.Is(err, context.Canceled):
		s.state = StateCancelled
	default:
		logger().Infow("stream fail", "conversation", s.id, "err", err)
		s.state = StateErrored
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
