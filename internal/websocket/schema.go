package websocket

import "github.com/stemsi/examkb/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventState    Event = "state"
	EventProgress Event = "progress"
	EventPong     Event = "pong"
)

// StateResponse is sent once after the upgrade with the cached import state.
type StateResponse struct {
	Event Event              `json:"event"`
	State *model.ImportState `json:"state"`
}

// ProgressResponse relays one pipeline progress event.
type ProgressResponse struct {
	Event    Event               `json:"event"`
	Progress model.ProgressEvent `json:"progress"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
