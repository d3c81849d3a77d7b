package bridge

import (
	"encoding/json"

	"github.com/bitcloutplus/cli/pkg/identity"
)

// Frame types exchanged with the host page.
const (
	// page to bridge
	FrameReady       = "ready"
	FrameMessage     = "message"
	FramePopupClosed = "popup.closed"

	// bridge to page
	FramePost       = "post"
	FramePopupOpen  = "popup.open"
	FramePopupClose = "popup.close"
)

// inboundFrame is sent by the host page.
type inboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Popup string          `json:"popup,omitempty"`
}

// outboundFrame is sent to the host page.
type outboundFrame struct {
	Type     string                    `json:"type"`
	Message  *identity.OutboundMessage `json:"message,omitempty"`
	Popup    string                    `json:"popup,omitempty"`
	URL      string                    `json:"url,omitempty"`
	Features string                    `json:"features,omitempty"`
}
