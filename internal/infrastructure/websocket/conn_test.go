package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair starts a server that wraps each accepted socket in a Conn and hands it
// back, plus a dialled client side.
func pair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()
	conns := make(chan *Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- NewConn(ws)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-conns:
		t.Cleanup(func() { _ = c.Close() })
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
		return nil, nil
	}
}

func TestSendDeliversTextFrame(t *testing.T) {
	conn, client := pair(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Send(ctx, []byte(`{"type":"basis_update"}`)))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.JSONEq(t, `{"type":"basis_update"}`, string(msg))
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	conn, client := pair(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, conn.Send(ctx, []byte("x")))
		}()
	}
	wg.Wait()

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < n; i++ {
		_, msg, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "x", string(msg))
	}
}

func TestCloseIsIdempotentAndRejectsSend(t *testing.T) {
	conn, _ := pair(t)

	require.NoError(t, conn.Close())
	_ = conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, conn.Send(context.Background(), []byte("x")), ErrConnClosed)
}

func TestReadPumpReturnsWhenPeerCloses(t *testing.T) {
	conn, client := pair(t)

	returned := make(chan struct{})
	go func() {
		conn.ReadPump(context.Background())
		close(returned)
	}()

	// client chatter is discarded
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))
	_ = client.Close()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadPump did not return after peer close")
	}
}
