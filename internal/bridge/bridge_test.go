package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBridge struct {
	server   *Server
	http     *httptest.Server
	messages chan identity.Message
	closed   chan identity.Window
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	tb := &testBridge{
		messages: make(chan identity.Message, 8),
		closed:   make(chan identity.Window, 8),
	}
	s, err := New(Options{
		ProviderURL:   "https://identity.example.com/",
		OnMessage:     func(ctx context.Context, m identity.Message) { tb.messages <- m },
		OnPopupClosed: func(w identity.Window) { tb.closed <- w },
	})
	require.NoError(t, err)
	tb.server = s
	tb.http = httptest.NewServer(s.Handler())
	t.Cleanup(tb.http.Close)
	return tb
}

func (tb *testBridge) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(tb.http.URL, "http") + "/ws?token=" + token
}

func (tb *testBridge) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(tb.wsURL(tb.server.token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, tb.server.Connected, time.Second, 10*time.Millisecond)
	return conn
}

func (tb *testBridge) connectReady(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := tb.connect(t)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": FrameReady}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tb.server.WaitReady(ctx))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var f outboundFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestNew_RequiresLoopback(t *testing.T) {
	_, err := New(Options{Addr: "0.0.0.0:0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loopback")

	_, err = New(Options{Addr: "localhost:0"})
	assert.NoError(t, err)
}

func TestHostPage(t *testing.T) {
	tb := newTestBridge(t)

	resp, err := http.Get(tb.http.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(tb.http.URL + "/?token=" + tb.server.token)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://identity.example.com/embed?v=2")
}

func TestWebsocket_Rejects(t *testing.T) {
	tb := newTestBridge(t)

	_, resp, err := websocket.DefaultDialer.Dial(tb.wsURL("wrong"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err = websocket.DefaultDialer.Dial(tb.wsURL(tb.server.token), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	tb.connect(t)
	_, resp, err = websocket.DefaultDialer.Dial(tb.wsURL(tb.server.token), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPost_RequiresReadyPage(t *testing.T) {
	tb := newTestBridge(t)
	msg := identity.OutboundMessage{ID: "id-1", Service: "identity", Method: "jwt", Payload: map[string]any{}}

	assert.ErrorIs(t, tb.server.Post(context.Background(), msg), identity.ErrNoIdentity)

	conn := tb.connect(t)
	assert.ErrorIs(t, tb.server.Post(context.Background(), msg), identity.ErrNoIdentity)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": FrameReady}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tb.server.WaitReady(ctx))

	require.NoError(t, tb.server.Post(context.Background(), msg))
	f := readFrame(t, conn)
	assert.Equal(t, FramePost, f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, "id-1", f.Message.ID)
	assert.Equal(t, "jwt", f.Message.Method)
}

func TestRelaysMessages(t *testing.T) {
	tb := newTestBridge(t)
	conn := tb.connectReady(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"message","data":{"id":"id-1","method":"sign","payload":{"signedTransactionHex":"ff"}}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","data":"not an object"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"message","data":{"method":"login","payload":{"users":{}}}}`)))

	select {
	case m := <-tb.messages:
		assert.Equal(t, "id-1", m.ID)
		assert.JSONEq(t, `{"signedTransactionHex":"ff"}`, string(m.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not relayed")
	}
	select {
	case m := <-tb.messages:
		assert.Equal(t, identity.MethodLogin, m.Method)
	case <-time.After(time.Second):
		t.Fatal("login not relayed")
	}
}

func TestPopups(t *testing.T) {
	tb := newTestBridge(t)
	conn := tb.connectReady(t)

	w, err := tb.server.Open(context.Background(), "https://identity.example.com/approve?tx=ab", identity.PopupFeatures)
	require.NoError(t, err)
	open := readFrame(t, conn)
	assert.Equal(t, FramePopupOpen, open.Type)
	assert.Equal(t, "https://identity.example.com/approve?tx=ab", open.URL)
	assert.Equal(t, identity.PopupFeatures, open.Features)

	require.NoError(t, w.Close())
	closeFrame := readFrame(t, conn)
	assert.Equal(t, FramePopupClose, closeFrame.Type)
	assert.Equal(t, open.Popup, closeFrame.Popup)

	w, err = tb.server.Open(context.Background(), "https://identity.example.com/log-in", identity.PopupFeatures)
	require.NoError(t, err)
	open = readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": FramePopupClosed, "popup": open.Popup}))

	select {
	case closed := <-tb.closed:
		assert.Same(t, w, closed)
	case <-time.After(time.Second):
		t.Fatal("popup close not reported")
	}
	assert.NoError(t, w.Close())
}

func TestOpen_WithoutPageUsesBrowser(t *testing.T) {
	var opened []string
	orig := openURL
	openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	t.Cleanup(func() { openURL = orig })

	tb := newTestBridge(t)
	w, err := tb.server.Open(context.Background(), "https://identity.example.com/logout?publicKey=pk", identity.PopupFeatures)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Equal(t, []string{"https://identity.example.com/logout?publicKey=pk"}, opened)
}

func TestServe_StopsWithContext(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, s.Listen())
	assert.True(t, strings.HasPrefix(s.PageURL(), "http://127.0.0.1:"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.Origin() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
