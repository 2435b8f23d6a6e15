package ws

import (
	"time"

	"github.com/neuralliquid/portal/internal/theme"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	// Server to client.
	MessageThemeSnapshot MessageType = "theme.snapshot"
	MessageThemeChanged  MessageType = "theme.changed"

	// Client to server.
	MessageSystemPreference MessageType = "system_preference"
)

// Message is the envelope for all server to client messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ThemeData is the payload of theme.snapshot and theme.changed messages.
type ThemeData struct {
	Selection theme.Selection `json:"selection"`
	Markers   []theme.Marker  `json:"markers"`
	ClassList string          `json:"class_list"`
}

// ClientMessage is a message sent by the browser.
type ClientMessage struct {
	Type MessageType `json:"type"`
	// Dark is the prefers-color-scheme media query result for
	// system_preference messages.
	Dark *bool `json:"dark,omitempty"`
}

func themeData(sel theme.Selection) ThemeData {
	markers := theme.MarkersFor(sel)
	return ThemeData{
		Selection: sel,
		Markers:   markers.Sorted(),
		ClassList: markers.ClassList(),
	}
}
