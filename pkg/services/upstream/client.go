// Package upstream talks to the chat-completion provider (xAI, or anything
// OpenAI-compatible) as a raw streaming HTTP client. It owns the wire-level
// concerns the relay depends on: line reassembly across chunk boundaries,
// the [DONE] sentinel, and silently dropping heartbeat or malformed frames.
package upstream

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
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bizflow/bizflow/pkg/settings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	maxErrorBody = 4096
)

// ErrNoAPIKey reports a missing credential, checked before any network I/O.
var ErrNoAPIKey = errors.New("upstream api key not configured")

// StatusError is a non-success response from the provider. The status is
// propagated to the relay caller as-is, without retry.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Config overrides; zero fields fall back to settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	IdleTimeout time.Duration
}

type Client struct {
	cfg Config
	hc  *http.Client
}

func NewClient() *Client { return NewClientWith(Config{}) }

func NewClientWith(cfg Config) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = settings.Current.XaiAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = settings.Current.XaiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = settings.Current.ChatModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = settings.Current.ChatTemp
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = settings.Current.ChatMaxTokens
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = settings.Current.StreamIdleTime
	}
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
}

// ChatStream issues one streaming chat-completion request. A single attempt,
// no retry: a rejection comes back as *StatusError with the provider's
// status and logged body.
func (c *Client) ChatStream(ctx context.Context, messages []openai.ChatCompletionMessage) (*Stream, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		logger().Infow("upstream rejected", "status", resp.StatusCode, "body", string(errBody))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(errBody)}
	}

	return &Stream{
		resp:   resp,
		br:     bufio.NewReader(resp.Body),
		idle:   c.cfg.IdleTimeout,
		cancel: cancel,
	}, nil
}

// Stream is one in-flight completion. Recv hands out content fragments in
// arrival order; the buffered reader doubles as the decode buffer for frames
// split across network chunks.
type Stream struct {
	resp   *http.Response
	br     *bufio.Reader
	idle   time.Duration
	cancel context.CancelFunc
}

// Recv returns the next non-empty content fragment. io.EOF marks the end of
// the stream, on the [DONE] sentinel as well as on plain reader exhaustion —
// the wire format cannot tell a clean finish from a drop. Lines that are
// blank, unprefixed, or fail to parse are skipped, never fatal.
func (s *Stream) Recv() (string, error) {
	if s.idle > 0 {
		// stalled upstreams get cut instead of hanging the relay forever
		t := time.AfterFunc(s.idle, s.cancel)
		defer t.Stop()
	}

	for {
		line, err := s.br.ReadString('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.HasPrefix(trimmed, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(trimmed, dataPrefix)
		if payload == doneSentinel {
			return "", io.EOF
		}

		var frame openai.ChatCompletionStreamResponse
		if jerr := json.Unmarshal([]byte(payload), &frame); jerr != nil {
			logger().Debugw("skip malformed frame", "line", trimmed, "err", jerr)
			continue
		}
		if len(frame.Choices) > 0 {
			if content := frame.Choices[0].Delta.Content; content != "" {
				return content, nil
			}
		}
	}
}

// Close tears down the underlying connection. Safe after Recv returned io.EOF.
func (s *Stream) Close() error {
	s.cancel()
	return s.resp.Body.Close()
}
