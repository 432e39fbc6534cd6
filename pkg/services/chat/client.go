// Package chat is the Go consumer of the relay endpoint: it drives one
// streaming request per turn into a growing assistant Turn and owns the
// conversation lifecycle (Session).
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bizflow/bizflow/pkg/models/aigc"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// shown instead of an empty reply when the request fails before any
	// content streamed in; partial content is never overwritten by it
	fallbackText = "죄송합니다. 일시적인 오류가 발생했습니다. 다시 시도해주세요."
)

// Request is the relay chat request body.
type Request struct {
	Messages       aigc.Messages `json:"messages"`
	CurrentPage    string        `json:"currentPage,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// fragmentEvent mirrors the relay's normalized `data: {"content": ...}` frame.
type fragmentEvent struct {
	Content string `json:"content"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Handle tracks one in-flight assistant turn.
type Handle struct {
	turn   *Turn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *Handle) Turn() *Turn { return h.turn }

// Cancel aborts the underlying connection. Content appended so far stays.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the turn settled, was cancelled or errored.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err reports how the turn ended, valid after Done: nil for a settled turn,
// context.Canceled after Cancel, anything else is a transport failure.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Send posts req to the relay and starts filling turn with the streamed
// fragments; onFragment (optional) fires after each append so a UI can
// re-render incrementally. Failures before any byte streamed put the
// fallback text into the empty turn.
func (c *Client) Send(ctx context.Context, req Request, turn *Turn, onFragment func(string)) (*Handle, error) {
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	hr.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(hr)
	if err != nil {
		cancel()
		c.applyFallback(turn, onFragment)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()
		c.applyFallback(turn, onFragment)
		return nil, fmt.Errorf("relay status %d: %s", resp.StatusCode, string(errBody))
	}

	h := &Handle{
		turn:   turn,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.read(resp.Body, onFragment)
	return h, nil
}

func (c *Client) applyFallback(turn *Turn, onFragment func(string)) {
	if turn.Text() == "" {
		turn.Append(fallbackText)
		if onFragment != nil {
			onFragment(fallbackText)
		}
	}
}

// read consumes the relay event stream until exhaustion. The buffered reader
// reassembles frames split across network chunks; unprefixed or unparsable
// lines are skipped.
func (h *Handle) read(body io.ReadCloser, onFragment func(string)) {
	defer body.Close()
	br := bufio.NewReader(body)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, dataPrefix) {
				payload := strings.TrimPrefix(trimmed, dataPrefix)
				if payload == doneSentinel {
					h.finish(nil)
					return
				}
				var ev fragmentEvent
				if jerr := json.Unmarshal([]byte(payload), &ev); jerr != nil {
					logger().Debugw("skip invalid event", "line", trimmed, "err", jerr)
				} else if ev.Content != "" {
					h.turn.Append(ev.Content)
					if onFragment != nil {
						onFragment(ev.Content)
					}
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// stream ended without the sentinel; treated as settled
				h.finish(nil)
			case errors.Is(err, context.Canceled) || h.ctx.Err() != nil:
				h.finish(context.Canceled)
			default:
				if h.turn.Text() == "" {
					h.turn.Append(fallbackText)
					if onFragment != nil {
						onFragment(fallbackText)
					}
				}
				h.finish(err)
			}
			return
		}
	}
}

func (h *Handle) finish(err error) {
	h.err = err
	h.cancel()
	close(h.done)
}
