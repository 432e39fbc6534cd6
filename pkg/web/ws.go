package web

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatWS carries the chat contract over a websocket: the client sends one
// ChatRequest, receives ChatFragment messages as they stream in, then a
// closing {"done": true}. Same at-most-once relay semantics as /api/chat.
func (s *server) chatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger().Infow("ws upgrade fail", "err", err)
		return
	}
	defer conn.Close()

	var param ChatRequest
	if err := conn.ReadJSON(&param); err != nil {
		logger().Infow("ws read fail", "err", err)
		return
	}
	csid := cast.ToString(param.ConversationID)

	messages := s.buildMessages(&param)
	logger().Infow("chat ws", "csid", csid, "msgs", len(messages), "page", param.CurrentPage, "ip", r.RemoteAddr)

	ccs, err := s.uc.ChatStream(r.Context(), messages)
	if err != nil {
		_ = conn.WriteJSON(M{"error": err.Error()})
		return
	}
	defer ccs.Close()

	var answer string
	for {
		frag, err := ccs.Recv()
		if err != nil {
			break
		}
		if err = conn.WriteJSON(&ChatFragment{Content: frag}); err != nil {
			logger().Infow("ws write fail", "err", err)
			break
		}
		answer += frag
	}
	_ = conn.WriteJSON(M{"done": true})

	s.saveHistory(r, &param, csid, answer)
}
