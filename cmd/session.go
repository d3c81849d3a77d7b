package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitcloutplus/cli/internal/bridge"
	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/routes"
	"github.com/bitcloutplus/cli/pkg/txn"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
)

// sessionHandlers are the router collaborators a command brings along.
type sessionHandlers struct {
	Notifications identity.NotificationMarker
	Unlockables   identity.UnlockableHandler
}

// session is one run of the identity bridge with the protocol stack on top.
type session struct {
	app       *app
	log       *pterm.Logger
	bridge    *bridge.Server
	registry  *identity.Registry
	popups    *identity.Popups
	channel   *identity.Channel
	requester *identity.Requester
	router    *identity.Router
	nav       *appNavigator
	events    chan identity.Event

	cancel context.CancelFunc
	done   chan error
}

func newSession(a *app, currentPath string, openOutcome bool) (*session, error) {
	s := &session{
		app:      a,
		log:      a.log,
		registry: identity.NewRegistry(),
		events:   make(chan identity.Event, 32),
		nav:      newAppNavigator(a.cfg.AppURL, currentPath, openOutcome),
	}

	b, err := bridge.New(bridge.Options{
		Addr:        a.cfg.BridgeAddr,
		ProviderURL: a.identityURL(),
		OnMessage: func(ctx context.Context, m identity.Message) {
			s.router.Handle(ctx, m)
		},
		OnPopupClosed: func(w identity.Window) {
			s.popups.Forget(w)
		},
		Logger: a.log,
	})
	if err != nil {
		return nil, err
	}
	s.bridge = b
	s.popups = identity.NewPopups(b, a.log)
	s.channel = identity.NewChannel(b, s.popups, a.identityURL())
	s.requester = identity.NewRequester(s.registry, s.channel, a.accounts)
	return s, nil
}

// start brings the bridge up and waits for the provider iframe to load.
func (s *session) start(ctx context.Context, h sessionHandlers) error {
	s.router = identity.NewRouter(identity.RouterConfig{
		Registry:      s.registry,
		Channel:       s.channel,
		Accounts:      s.app.accounts,
		Resolver:      txn.NewResolver(s.app.node, s.app.node, s.log),
		Navigator:     s.nav,
		Notifications: h.Notifications,
		Unlockables:   h.Unlockables,
		Observer:      s.observe,
		Logger:        s.log,
	})

	if err := s.bridge.Listen(); err != nil {
		return err
	}
	serveCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.bridge.Serve(serveCtx) }()

	if noBrowser {
		pterm.Println(bridgeBanner(s.bridge.PageURL()))
	} else {
		pterm.Info.Println("Opening the identity bridge in your browser...")
		if err := s.bridge.OpenPage(); err != nil {
			pterm.Warning.Println("Could not open a browser")
			pterm.Println(bridgeBanner(s.bridge.PageURL()))
		}
	}

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the identity provider...")
	err := s.bridge.WaitReady(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Fail("Identity provider did not connect")
		} else {
			spinner.Success("Identity provider connected")
		}
	}
	return err
}

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// bridgeBanner tells the user where to open the bridge page.
func bridgeBanner(pageURL string) string {
	return bannerStyle.Render("Open this page to connect the identity provider:\n" + pageURL)
}

func (s *session) observe(e identity.Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("dropping identity event", s.log.Args("type", e.Type))
	}
}

// close closes a popup left open and shuts the bridge down.
func (s *session) close() {
	if s.cancel == nil {
		return
	}
	if s.popups.IsOpen() {
		if _, err := s.popups.CloseCurrent(); err != nil {
			s.log.Debug("failed to close identity popup", s.log.Args("error", err))
		}
	}
	s.cancel()
	if err := <-s.done; err != nil {
		s.log.Debug("bridge stopped with error", s.log.Args("error", err))
	}
	s.cancel = nil
}

// awaitFunc inspects an event. It returns done once the command's flow has
// finished, with the flow's error if it failed.
type awaitFunc func(e identity.Event) (done bool, err error)

// await feeds events to fn until it reports done. When ctx ends first, the
// ids are abandoned and ErrAbandoned is returned.
func (s *session) await(ctx context.Context, fn awaitFunc, ids func() []string) error {
	return awaitEvents(ctx, s.events, fn, func() {
		for _, id := range ids() {
			if s.requester.Abandon(id) {
				s.log.Debug("abandoned identity request", s.log.Args("id", id))
			}
		}
	})
}

func awaitEvents(ctx context.Context, events <-chan identity.Event, fn awaitFunc, abandon func()) error {
	for {
		select {
		case e := <-events:
			done, err := fn(e)
			if done {
				return err
			}
		case <-ctx.Done():
			abandon()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: no response within %s", identity.ErrAbandoned, timeout)
			}
			return fmt.Errorf("%w: %v", identity.ErrAbandoned, ctx.Err())
		}
	}
}

// submittedOrFailed finishes on the outcome of a sign request, printing it.
func submittedOrFailed(nav *appNavigator) awaitFunc {
	return func(e identity.Event) (bool, error) {
		switch e.Type {
		case identity.EventApprovalRequested:
			pterm.Info.Println("Approve the transaction in the identity popup")
			return false, nil
		case identity.EventSubmitted:
			printOutcome(nav, e.Outcome)
			return true, nil
		case identity.EventSubmitFailed:
			pterm.Error.Println("The node rejected the transaction")
			return true, e.Err
		case identity.EventMalformed:
			return true, fmt.Errorf("unexpected identity response: %s", e.Text)
		case identity.EventHandlerFailed:
			return true, e.Err
		}
		return false, nil
	}
}

func printOutcome(nav *appNavigator, out *txn.Outcome) {
	if out == nil {
		pterm.Success.Println("Transaction submitted")
		return
	}
	if out.TxnHashHex != "" {
		pterm.Success.Printf("Transaction submitted: %s\n", out.TxnHashHex)
	} else {
		pterm.Success.Println("Transaction submitted")
	}
	switch out.Action {
	case txn.ActionReload:
		pterm.Info.Printf("Reload %s\n", nav.url(out.Path))
	default:
		pterm.Info.Printf("View it at %s\n", nav.url(out.Path))
	}
}

// appNavigator stands in for the web app: it tracks the path the user is on
// and opens outcome pages when asked to.
type appNavigator struct {
	mu      sync.Mutex
	baseURL string
	path    string
	open    bool
	openURL func(string) error
}

func newAppNavigator(baseURL, path string, open bool) *appNavigator {
	if path == "" {
		path = "/"
	}
	return &appNavigator{baseURL: baseURL, path: path, open: open, openURL: browser.OpenURL}
}

func (n *appNavigator) url(path string) string {
	return routes.Join(n.baseURL, path)
}

func (n *appNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *appNavigator) Navigate(ctx context.Context, path string) error {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
	if !n.open {
		return nil
	}
	return n.openURL(n.url(path))
}

func (n *appNavigator) Reload(ctx context.Context) error {
	if !n.open {
		return nil
	}
	return n.openURL(n.url(n.CurrentPath()))
}
