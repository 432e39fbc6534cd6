package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflow/bizflow/pkg/models/aigc"
)

const testGreeting = "안녕하세요! 무엇을 도와드릴까요?"

func TestSessionSingleInFlight(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		writeFragment(w, "계산 ")
		<-release
		writeFragment(w, "결과입니다.")
		writeDone(w)
	}))
	defer ts.Close()

	frags := make(chan string, 8)
	sess := NewSession(SessionOptions{
		Client:     NewClient(ts.URL),
		OnFragment: func(frag string) { frags <- frag },
	})

	pending, err := sess.Send(context.Background(), "부가세 계산해줘")
	require.NoError(t, err)
	select {
	case <-frags:
	case <-time.After(time.Second * 5):
		t.Fatal("first fragment did not arrive")
	}
	require.Equal(t, StateStreaming, sess.State())

	// a second send while streaming is a guarded no-op
	_, err = sess.Send(context.Background(), "하나 더")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StateStreaming, sess.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// and the original stream keeps delivering
	close(release)
	require.NoError(t, sess.Wait())
	assert.Equal(t, StateSettled, sess.State())
	assert.Equal(t, "계산 결과입니다.", pending.Text())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSessionCancelKeepsMonotonicContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeFragment(w, "안")
		writeFragment(w, "녕")
		<-r.Context().Done()
	}))
	defer ts.Close()

	frags := make(chan string, 8)
	sess := NewSession(SessionOptions{
		Client:     NewClient(ts.URL),
		OnFragment: func(frag string) { frags <- frag },
	})

	pending, err := sess.Send(context.Background(), "인사해줘")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		select {
		case <-frags:
		case <-time.After(time.Second * 5):
			t.Fatal("fragment did not arrive")
		}
	}

	sess.Cancel()
	err = sess.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, sess.State())
	assert.True(t, sess.State().Terminal())
	assert.Equal(t, "안녕", pending.Text())
}

func TestSessionExcludesGreetingFromReplay(t *testing.T) {
	var mu sync.Mutex
	var bodies []Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		bodies = append(bodies, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		writeFragment(w, "첫 답변")
		writeDone(w)
	}))
	defer ts.Close()

	sess := NewSession(SessionOptions{
		Client:      NewClient(ts.URL),
		CurrentPage: "/invoices/new",
		Greeting:    testGreeting,
	})

	_, err := sess.Send(context.Background(), "세금계산서 발행 방법")
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	mu.Lock()
	require.Len(t, bodies, 1)
	first := bodies[0]
	mu.Unlock()
	assert.Equal(t, "/invoices/new", first.CurrentPage)
	assert.Equal(t, sess.ID(), first.ConversationID)
	require.Len(t, first.Messages, 1, "the greeting must not be replayed")
	assert.Equal(t, aigc.RoleUser, first.Messages[0].Role)

	// second turn replays the full non-seed history in arrival order
	_, err = sess.Send(context.Background(), "역발행이 뭐야?")
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	mu.Lock()
	require.Len(t, bodies, 2)
	hist := bodies[1].Messages
	mu.Unlock()
	require.Len(t, hist, 3)
	assert.Equal(t, "세금계산서 발행 방법", hist[0].Content)
	assert.Equal(t, aigc.RoleAssistant, hist[1].Role)
	assert.Equal(t, "첫 답변", hist[1].Content)
	assert.Equal(t, "역발행이 뭐야?", hist[2].Content)

	// transcript keeps the greeting for display
	turns := sess.Turns()
	require.NotEmpty(t, turns)
	assert.Equal(t, testGreeting, turns[0].Text())
}

func TestSessionErroredIsTerminal(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeFragment(w, "이제 됩니다")
		writeDone(w)
	}))
	defer ts.Close()

	sess := NewSession(SessionOptions{Client: NewClient(ts.URL)})

	pending, err := sess.Send(context.Background(), "질문")
	require.Error(t, err)
	assert.Equal(t, StateErrored, sess.State())
	assert.Equal(t, fallbackText, pending.Text())

	// terminal states all accept the next turn
	fail.Store(false)
	pending, err = sess.Send(context.Background(), "다시")
	require.NoError(t, err)
	require.NoError(t, sess.Wait())
	assert.Equal(t, StateSettled, sess.State())
	assert.Equal(t, "이제 됩니다", pending.Text())
}
