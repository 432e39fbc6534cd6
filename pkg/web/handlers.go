package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/cupogo/andvari/models/oid"
	"github.com/jpillora/eventsource"
	"github.com/marcsv/go-binder/binder"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"

	"github.com/bizflow/bizflow/pkg/models/aigc"
	"github.com/bizflow/bizflow/pkg/models/pagectx"
	"github.com/bizflow/bizflow/pkg/services/stores"
	"github.com/bizflow/bizflow/pkg/services/upstream"
	"github.com/bizflow/bizflow/pkg/settings"
)

// buildMessages prepends the system instruction to the caller's history. The
// history already excludes the synthetic greeting; an unrecognized
// currentPage just contributes nothing.
func (s *server) buildMessages(param *ChatRequest) []openai.ChatCompletionMessage {
	systemPrompt := dftSystemMsg
	if len(s.preset.SystemPrompt) > 0 {
		systemPrompt = s.preset.SystemPrompt
	}
	if desc, ok := pagectx.Lookup(param.CurrentPage); ok {
		systemPrompt = systemPrompt + "\n\n## 현재 화면\n" + desc
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(param.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range param.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return messages
}

func (s *server) postChat(w http.ResponseWriter, r *http.Request) {
	var param ChatRequest
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	csid := cast.ToString(param.ConversationID)

	messages := s.buildMessages(&param)
	logger().Infow("chat", "csid", csid, "msgs", len(messages), "page", param.CurrentPage, "ip", r.RemoteAddr)

	ccs, err := s.uc.ChatStream(r.Context(), messages)
	if err != nil {
		var se *upstream.StatusError
		switch {
		case errors.Is(err, upstream.ErrNoAPIKey):
			apiFail(w, r, 500, err)
		case errors.As(err, &se):
			apiFail(w, r, se.Status, err)
		default:
			logger().Infow("call chat stream fail", "err", err)
			apiFail(w, r, 500, err)
		}
		return
	}
	defer ccs.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	answer := relayStream(ccs, w, flusher)

	s.saveHistory(r, &param, csid, answer)
}

// relayStream forwards every upstream fragment to the caller as soon as it
// is recognized and always closes with the [DONE] sentinel, truncated
// upstreams included.
func relayStream(ccs *upstream.Stream, w io.Writer, flusher http.Flusher) (answer string) {
	defer func() {
		_ = writeEvent(w, esDone)
		flusher.Flush()
	}()

	for {
		frag, err := ccs.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger().Infow("upstream recv fail", "err", err)
			}
			return
		}
		if !writeEvent(w, &ChatFragment{Content: frag}) {
			return
		}
		flusher.Flush()
		answer += frag
	}
}

// writeEvent write one `data:` line
func writeEvent(w io.Writer, m any) bool {
	var b []byte
	var err error
	if s, ok := m.(string); ok {
		b = []byte(s)
	} else {
		b, err = json.Marshal(m)
		if err != nil {
			logger().Infow("json marshal fail", "m", m, "err", err)
			return false
		}
	}

	if err = eventsource.WriteEvent(w, eventsource.Event{
		Data: b,
	}); err != nil {
		logger().Infow("eventsource write fail", "err", err)
		return false
	}

	return true
}

func (s *server) saveHistory(r *http.Request, param *ChatRequest, csid, answer string) {
	if !settings.Current.HistorySave || len(csid) == 0 || len(answer) == 0 {
		return
	}
	var prompt string
	if n := len(param.Messages); n > 0 {
		prompt = param.Messages[n-1].Content
	}
	cs := stores.NewConversation(csid)
	hi := &aigc.HistoryItem{
		Time: time.Now().Unix(),
		Page: param.CurrentPage,
		ChatItem: &aigc.HistoryChatItem{
			User:      prompt,
			Assistant: answer,
		},
	}
	if err := cs.AddHistory(r.Context(), hi); err != nil {
		logger().Infow("save history fail", "csid", csid, "err", err)
	}
}

func (s *server) getWelcome(w http.ResponseWriter, r *http.Request) {
	msg := new(aigc.Message)

	if s.preset.Welcome != nil {
		msg.Content = s.preset.Welcome.Content
	} else {
		msg.Content = welcomeText
	}
	msg.Role = aigc.RoleAssistant
	msg.ID = oid.NewID(oid.OtEvent).String()
	apiOk(w, r, msg)
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	cs := stores.NewConversation(cid)
	data, err := cs.ListHistory(r.Context())
	if err != nil {
		apiFail(w, r, 500, err)
		return
	}
	apiOk(w, r, data, len(data))
}
