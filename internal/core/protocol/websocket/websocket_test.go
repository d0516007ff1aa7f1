package websocket

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenesync/internal/core/dispatch"
	"github.com/zeusync/scenesync/internal/core/models"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/core/users"
)

type membership struct {
	mu     sync.Mutex
	joined map[models.UserID]bool
	events []string
}

func (m *membership) record(event string, id models.UserID) {
	m.mu.Lock()
	m.events = append(m.events, event+":"+string(id))
	m.mu.Unlock()
}

func (m *membership) Join(id models.UserID) (models.UserID, error) {
	m.mu.Lock()
	if m.joined == nil {
		m.joined = make(map[models.UserID]bool)
	}
	exists := m.joined[id]
	m.joined[id] = true
	m.mu.Unlock()
	if exists {
		return "", fmt.Errorf("%w: %s", users.ErrUserExists, id)
	}
	m.record("join", id)
	return id, nil
}

func (m *membership) SetActive(id models.UserID) error {
	m.record("active", id)
	return nil
}

func (m *membership) Leave(id models.UserID) error {
	m.mu.Lock()
	delete(m.joined, id)
	m.mu.Unlock()
	m.record("leave", id)
	return nil
}

func (m *membership) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHandlerDeliversSinkPayloads(t *testing.T) {
	members := &membership{}
	sink := NewSink(dispatch.DefaultOptions(), time.Second, log.NewNop())
	srv := httptest.NewServer(NewHandler(sink, members, DefaultHandlerConfig(), log.NewNop()))
	defer srv.Close()
	defer sink.Close()

	client := dial(t, srv, "alice")
	defer client.Close()

	require.Eventually(t, func() bool { return sink.Connected() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sink.Send(context.Background(), "alice", true, []byte{1, 2, 3}))

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	kind, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{1, 2, 3}, data)

	assert.ErrorIs(t, sink.Send(context.Background(), "bob", true, nil), ErrNotConnected)
}

func TestHandlerLeavesOnDisconnect(t *testing.T) {
	members := &membership{}
	sink := NewSink(dispatch.DefaultOptions(), time.Second, log.NewNop())
	srv := httptest.NewServer(NewHandler(sink, members, DefaultHandlerConfig(), log.NewNop()))
	defer srv.Close()

	client := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return sink.Connected() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, client.Close())

	require.Eventually(t, func() bool { return sink.Connected() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(members.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"join:alice", "active:alice", "leave:alice"}, members.snapshot())
}

// drain reads conn until it fails, answering pings on the way.
func drain(conn *websocket.Conn) <-chan error {
	failed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				failed <- err
				return
			}
		}
	}()
	return failed
}

func TestHandlerKeepsReadOnlyClientsAlive(t *testing.T) {
	members := &membership{}
	sink := NewSink(dispatch.DefaultOptions(), time.Second, log.NewNop())
	config := DefaultHandlerConfig()
	config.PongWait = 500 * time.Millisecond
	srv := httptest.NewServer(NewHandler(sink, members, config, log.NewNop()))
	defer srv.Close()
	defer sink.Close()

	client := dial(t, srv, "alice")
	defer client.Close()
	failed := drain(client)

	require.Eventually(t, func() bool { return sink.Connected() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case err := <-failed:
		t.Fatalf("client dropped: %v", err)
	case <-time.After(1500 * time.Millisecond):
	}

	assert.Equal(t, 1, sink.Connected())
	assert.Equal(t, []string{"join:alice", "active:alice"}, members.snapshot())
}

func TestReconnectTakesOverSession(t *testing.T) {
	members := &membership{}
	sink := NewSink(dispatch.DefaultOptions(), time.Second, log.NewNop())
	srv := httptest.NewServer(NewHandler(sink, members, DefaultHandlerConfig(), log.NewNop()))
	defer srv.Close()
	defer sink.Close()

	first := dial(t, srv, "alice")
	defer first.Close()
	firstFailed := drain(first)
	require.Eventually(t, func() bool { return sink.Connected() == 1 }, time.Second, 5*time.Millisecond)

	second := dial(t, srv, "alice")
	defer second.Close()

	select {
	case <-firstFailed:
	case <-time.After(time.Second):
		t.Fatal("replaced connection was not closed")
	}
	require.Eventually(t, func() bool { return len(members.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(members.snapshot()) > 3 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"join:alice", "active:alice", "active:alice"}, members.snapshot())

	require.NoError(t, sink.Send(context.Background(), "alice", true, []byte{9}))
	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)
}

func TestSinkUsesTextFramesForJSON(t *testing.T) {
	opts := dispatch.Options{Encoding: dispatch.EncodingJSON, Compression: dispatch.CompressionNone}
	assert.Equal(t, websocket.TextMessage, NewSink(opts, 0, log.NewNop()).messageType)

	opts.Compression = dispatch.CompressionZstd
	assert.Equal(t, websocket.BinaryMessage, NewSink(opts, 0, log.NewNop()).messageType)
}

func TestSinkSendHonoursContext(t *testing.T) {
	sink := NewSink(dispatch.DefaultOptions(), 0, log.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Send(ctx, "alice", true, nil), context.Canceled)
}
