package web

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflow/bizflow/pkg/settings"
)

var testRedisOnce sync.Once

func startRedis(t *testing.T) {
	t.Helper()
	testRedisOnce.Do(func() {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		settings.Current.RedisURI = "redis://" + mr.Addr()
	})
}

// fakeProvider mimics the chat-completion endpoint: checks the request shape
// and streams canned fragments, a malformed line in the middle.
func fakeProvider(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)

		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for i, frag := range fragments {
			if i == 1 {
				fmt.Fprint(w, "data: not-json\n\n")
			}
			b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
				Choices: []openai.ChatCompletionStreamChoice{
					{Delta: openai.ChatCompletionStreamChoiceDelta{Content: frag}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func newTestServer(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()
	settings.Current.XaiAPIKey = "test-key"
	settings.Current.XaiBaseURL = upstreamURL
	s := New(Config{Addr: ":0"}).(*server)
	ts := httptest.NewServer(s.ar)
	t.Cleanup(ts.Close)
	return ts
}

func postChatReq(t *testing.T, ts *httptest.Server, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

// readEvents collects the payloads of all data: lines, the sentinel included.
func readEvents(t *testing.T, body io.Reader) (events []string) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	return
}

func TestChatRelayEndToEnd(t *testing.T) {
	startRedis(t)
	up := fakeProvider(t, "부가세는 공급가액의 ", "10%입니다.")
	defer up.Close()
	ts := newTestServer(t, up.URL)

	resp := postChatReq(t, ts, M{
		"messages":    []M{{"role": "user", "content": "부가세 계산해줘"}},
		"currentPage": "/invoices/new",
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := readEvents(t, resp.Body)
	require.Len(t, events, 3, "two fragments and the sentinel")
	assert.Equal(t, esDone, events[len(events)-1])

	var frag ChatFragment
	require.NoError(t, json.Unmarshal([]byte(events[0]), &frag))
	assert.Equal(t, "부가세는 공급가액의 ", frag.Content)
	require.NoError(t, json.Unmarshal([]byte(events[1]), &frag))
	assert.Equal(t, "10%입니다.", frag.Content)
}

func TestChatRelayPageContextSelection(t *testing.T) {
	startRedis(t)
	var gotSystem string
	var mu sync.Mutex
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		gotSystem = req.Messages[0].Content
		mu.Unlock()
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer up.Close()
	ts := newTestServer(t, up.URL)

	resp := postChatReq(t, ts, M{
		"messages":    []M{{"role": "user", "content": "여기서 뭘 할 수 있어?"}},
		"currentPage": "/invoices/new",
	})
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	mu.Lock()
	sys := gotSystem
	mu.Unlock()
	assert.Contains(t, sys, "BizFlow") // base prompt first
	assert.Contains(t, sys, "/invoices/new")
	assert.Contains(t, sys, "3단계 마법사")

	// unrecognized pages are silently ignored
	resp = postChatReq(t, ts, M{
		"messages":    []M{{"role": "user", "content": "안녕"}},
		"currentPage": "/no/such/page",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	mu.Lock()
	sys = gotSystem
	mu.Unlock()
	assert.NotContains(t, sys, "현재 화면")
}

func TestChatRelayMissingCredential(t *testing.T) {
	startRedis(t)
	settings.Current.XaiAPIKey = ""
	settings.Current.XaiBaseURL = "http://127.0.0.1:1"
	s := New(Config{Addr: ":0"}).(*server)
	ts := httptest.NewServer(s.ar)
	defer ts.Close()

	resp := postChatReq(t, ts, M{"messages": []M{{"role": "user", "content": "안녕"}}})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var res map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Contains(t, res["message"], "api key")
}

func TestChatRelayUpstreamStatusPropagation(t *testing.T) {
	startRedis(t)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer up.Close()
	ts := newTestServer(t, up.URL)

	resp := postChatReq(t, ts, M{"messages": []M{{"role": "user", "content": "안녕"}}})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWelcomeAndHistoryRoundTrip(t *testing.T) {
	startRedis(t)
	up := fakeProvider(t, "답변입니다.")
	defer up.Close()
	ts := newTestServer(t, up.URL)

	// the welcome hands out a fresh conversation id
	resp, err := http.Get(ts.URL + "/api/welcome")
	require.NoError(t, err)
	var wres struct {
		Data struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wres))
	resp.Body.Close()
	require.NotEmpty(t, wres.Data.ID)
	assert.Contains(t, wres.Data.Content, "BizFlow")

	resp = postChatReq(t, ts, M{
		"messages":       []M{{"role": "user", "content": "부가세 계산해줘"}},
		"currentPage":    "/invoices/new",
		"conversationId": wres.Data.ID,
	})
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/history/" + wres.Data.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var hres struct {
		Data []struct {
			Page string `json:"page"`
			Chat struct {
				User      string `json:"user"`
				Assistant string `json:"assistant"`
			} `json:"chat"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hres))
	require.Len(t, hres.Data, 1)
	assert.Equal(t, "부가세 계산해줘", hres.Data[0].Chat.User)
	assert.Equal(t, "답변입니다.", hres.Data[0].Chat.Assistant)
	assert.Equal(t, "/invoices/new", hres.Data[0].Page)
}

func TestChatWebsocketTransport(t *testing.T) {
	startRedis(t)
	up := fakeProvider(t, "안", "녕")
	defer up.Close()
	ts := newTestServer(t, up.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat-ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(M{
		"messages": []M{{"role": "user", "content": "인사해줘"}},
	}))

	var frags []string
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if done, ok := msg["done"].(bool); ok && done {
			break
		}
		if content, ok := msg["content"].(string); ok && content != "" {
			frags = append(frags, content)
		}
	}
	assert.Equal(t, []string{"안", "녕"}, frags)
}
