package api

import "talkbridge/session"

// Message событие для фронтенда
type Message struct {
	Type      string            `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	Segment   *session.Segment  `json:"segment,omitempty"`
	Stats     *session.Stats    `json:"stats,omitempty"`
	Snapshot  *session.Snapshot `json:"snapshot,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Типы событий
const (
	MsgSessionStarted  = "session_started"
	MsgSegmentReady    = "segment_ready"
	MsgStats           = "stats"
	MsgSessionComplete = "session_complete"
)
