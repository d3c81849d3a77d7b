// Package bridge connects the companion to the identity provider through the
// user's browser. It serves a loopback page that embeds the provider iframe
// and relays browser messages over a websocket; provider popups are opened
// and closed by the page on the bridge's instruction.
package bridge

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
	shutdownWait = 5 * time.Second
)

// ErrAlreadyConnected is returned to a second host page while one is
// connected.
var ErrAlreadyConnected = errors.New("a host page is already connected")

//go:embed page/host.html
var hostPage string

var hostTemplate = template.Must(template.New("host").Parse(hostPage))

// openURL opens a page in the user's browser.
var openURL = browser.OpenURL

// MessageHandler receives the identity messages relayed by the host page.
type MessageHandler func(ctx context.Context, m identity.Message)

// Options configure a Server.
type Options struct {
	// Addr is the loopback address to listen on; port 0 picks a free one.
	Addr string
	// ProviderURL is the identity provider the page embeds.
	ProviderURL string
	// OnMessage is called for every relayed message, in arrival order.
	OnMessage MessageHandler
	// OnPopupClosed is called when the user closes a popup themselves.
	OnPopupClosed func(w identity.Window)
	Logger        *pterm.Logger
}

// Server is the loopback side of the bridge. It implements identity.Poster
// and identity.WindowOpener.
type Server struct {
	opts     Options
	log      *pterm.Logger
	token    string
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	ready   bool
	readyCh chan struct{}
	windows map[string]*window
}

func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.ProviderURL == "" {
		opts.ProviderURL = identity.DefaultProviderURL
	}
	opts.ProviderURL = strings.TrimSuffix(opts.ProviderURL, "/")
	if _, err := url.Parse(opts.ProviderURL); err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}
	host, _, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge address %q: %w", opts.Addr, err)
	}
	if !isLoopbackHost(host) {
		return nil, fmt.Errorf("bridge requires a loopback address, got %s", host)
	}

	log := opts.Logger
	if log == nil {
		log = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	s := &Server{
		opts:    opts,
		log:     log,
		token:   uuid.NewString(),
		readyCh: make(chan struct{}),
		windows: make(map[string]*window),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// Listen binds the server's address. The page URL is known afterwards.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = l
	return nil
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.closeConn()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler returns the bridge's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loopbackOnly)
	r.Get("/", s.handlePage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Origin is the bridge's http origin.
func (s *Server) Origin() string {
	if s.listener == nil {
		return "http://" + s.opts.Addr
	}
	return "http://" + s.listener.Addr().String()
}

// PageURL is the address of the host page, token included.
func (s *Server) PageURL() string {
	return s.Origin() + "/?token=" + url.QueryEscape(s.token)
}

// OpenPage opens the host page in the user's browser.
func (s *Server) OpenPage() error {
	return openURL(s.PageURL())
}

// WaitReady blocks until the page is ready or ctx is done.
func (s *Server) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for identity bridge: %w", ctx.Err())
	}
}

// Connected reports whether a host page is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Post sends msg to the provider iframe.
func (s *Server) Post(ctx context.Context, msg identity.OutboundMessage) error {
	s.mu.Lock()
	ready := s.ready && s.conn != nil
	s.mu.Unlock()
	if !ready {
		return identity.ErrNoIdentity
	}
	return s.write(outboundFrame{Type: FramePost, Message: &msg})
}

// Open opens a provider popup from the host page. Without a connected page
// the URL is opened in a new browser tab, which cannot be closed later.
func (s *Server) Open(ctx context.Context, u, features string) (identity.Window, error) {
	if !s.Connected() {
		s.log.Debug("no host page connected, opening popup in browser", s.log.Args("url", u))
		if err := openURL(u); err != nil {
			return nil, fmt.Errorf("failed to open browser: %w", err)
		}
		return tabWindow{}, nil
	}

	w := &window{id: uuid.NewString(), server: s}
	s.mu.Lock()
	s.windows[w.id] = w
	s.mu.Unlock()

	if err := s.write(outboundFrame{Type: FramePopupOpen, Popup: w.id, URL: u, Features: features}); err != nil {
		s.dropWindow(w.id)
		return nil, err
	}
	return w, nil
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if !s.validToken(r.URL.Query().Get("token")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := struct {
		EmbedURL string
		Token    string
	}{
		EmbedURL: s.opts.ProviderURL + "/embed?v=2",
		Token:    s.token,
	}
	if err := hostTemplate.Execute(w, data); err != nil {
		s.log.Warn("failed to render host page", s.log.Args("error", err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.validToken(r.URL.Query().Get("token")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if s.Connected() {
		http.Error(w, ErrAlreadyConnected.Error(), http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", s.log.Args("error", err))
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	s.log.Debug("host page connected", s.log.Args("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.pingLoop(ctx, conn)

	s.readLoop(ctx, conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.ready = false
	}
	s.mu.Unlock()
	s.log.Debug("host page disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f inboundFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("host page connection lost", s.log.Args("error", err))
			}
			return
		}
		s.dispatch(ctx, f)
	}
}

func (s *Server) dispatch(ctx context.Context, f inboundFrame) {
	switch f.Type {
	case FrameReady:
		s.mu.Lock()
		wasReady := s.ready
		s.ready = true
		s.mu.Unlock()
		if !wasReady {
			s.log.Debug("identity provider ready")
			select {
			case <-s.readyCh:
			default:
				close(s.readyCh)
			}
		}
	case FrameMessage:
		m, err := identity.ParseMessage(f.Data)
		if err != nil {
			s.log.Trace("ignoring undecodable message", s.log.Args("error", err))
			return
		}
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(ctx, m)
		}
	case FramePopupClosed:
		w := s.dropWindow(f.Popup)
		if w != nil && s.opts.OnPopupClosed != nil {
			s.opts.OnPopupClosed(w)
		}
	default:
		s.log.Trace("ignoring unknown frame", s.log.Args("type", f.Type))
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) write(f outboundFrame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return identity.ErrNoIdentity
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}

func (s *Server) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.ready = false
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	conn.Close()
}

func (s *Server) dropWindow(id string) *window {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok {
		return nil
	}
	delete(s.windows, id)
	return w
}

func (s *Server) validToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

// checkOrigin accepts only the bridge's own page.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host && isLoopbackHost(u.Hostname())
}

func (s *Server) loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(remoteIP); err == nil {
			remoteIP = host
		}
		if !isLoopbackIP(remoteIP) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// window is a popup opened by the host page.
type window struct {
	id     string
	server *Server
}

// Close asks the page to close the popup. A popup the user already closed is
// left alone.
func (w *window) Close() error {
	if w.server.dropWindow(w.id) == nil {
		return nil
	}
	return w.server.write(outboundFrame{Type: FramePopupClose, Popup: w.id})
}

// tabWindow is a page opened in a browser tab; it cannot be closed.
type tabWindow struct{}

func (tabWindow) Close() error { return nil }

func isLoopbackHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(strings.Trim(h, "[]"))
	return ip != nil && ip.IsLoopback()
}

func isLoopbackIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
