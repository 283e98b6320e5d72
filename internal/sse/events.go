// Package sse pushes server-side state changes to connected browsers as
// Server-Sent Events. Each browser tab subscribes with its visitor key and
// only receives events addressed to that visitor.
package sse

import (
	"time"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is sent once when a stream opens.
	EventConnected EventType = "connected"
	// EventView tells the page which view the visitor should now see.
	EventView EventType = "view"
	// EventNotice carries a non-blocking message for the visitor.
	EventNotice EventType = "notice"
)

// Views a visitor can be routed to.
const (
	ViewLogin     = "login"
	ViewDenied    = "denied"
	ViewDashboard = "dashboard"
)

// Event is a single message on a visitor's stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// VisitorKey restricts delivery to one visitor. Empty means everyone.
	VisitorKey string `json:"-"`
}

// ViewEventData is the payload of a view event.
type ViewEventData struct {
	View  string `json:"view"`
	Email string `json:"email,omitempty"`
}

// NoticeEventData is the payload of a notice event.
type NoticeEventData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewViewEvent creates a view event for one visitor.
func NewViewEvent(visitorKey, view, email string) Event {
	return Event{
		Type:       EventView,
		Data:       ViewEventData{View: view, Email: email},
		Timestamp:  time.Now(),
		VisitorKey: visitorKey,
	}
}

// NewNoticeEvent creates a notice event for one visitor.
func NewNoticeEvent(visitorKey, level, message string) Event {
	return Event{
		Type:       EventNotice,
		Data:       NoticeEventData{Level: level, Message: message},
		Timestamp:  time.Now(),
		VisitorKey: visitorKey,
	}
}
