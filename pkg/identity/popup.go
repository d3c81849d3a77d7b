package identity

import (
	"context"
	"sync"

	"github.com/pterm/pterm"
)

// Window is an open popup window.
type Window interface {
	Close() error
}

// WindowOpener opens provider pages in a new window.
type WindowOpener interface {
	Open(ctx context.Context, url, features string) (Window, error)
}

// Popups owns the single provider popup. A window it opened is closed at most
// once: by the next Open, or by CloseCurrent when a login message arrives.
type Popups struct {
	mu      sync.Mutex
	opener  WindowOpener
	current Window
	url     string
	log     *pterm.Logger
}

func NewPopups(opener WindowOpener, log *pterm.Logger) *Popups {
	if log == nil {
		log = discardLogger()
	}
	return &Popups{opener: opener, log: log}
}

// Open opens url in a popup. An already open popup is closed first.
func (p *Popups) Open(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.log.Debug("closing superseded popup", p.log.Args("url", p.url))
		if err := p.current.Close(); err != nil {
			p.log.Warn("failed to close popup", p.log.Args("url", p.url, "error", err))
		}
		p.current, p.url = nil, ""
	}

	if p.opener == nil {
		return ErrNoPopups
	}
	w, err := p.opener.Open(ctx, url, PopupFeatures)
	if err != nil {
		return err
	}
	p.current, p.url = w, url
	return nil
}

// CloseCurrent closes the open popup, if any. It reports whether a popup was
// open.
func (p *Popups) CloseCurrent() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return false, nil
	}
	w := p.current
	p.current, p.url = nil, ""
	return true, w.Close()
}

// Forget drops the handle of a window the user closed themselves.
func (p *Popups) Forget(w Window) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == w {
		p.current, p.url = nil, ""
	}
}

// IsOpen reports whether a popup is open.
func (p *Popups) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// URL returns the address of the open popup, or "" when none is open.
func (p *Popups) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}
