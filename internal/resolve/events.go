package resolve

import "pocketmemory/internal/action"

type EventType string

const (
	EventProgress EventType = "progress"
	EventFinal    EventType = "final"
	EventError    EventType = "error"
)

// Event is one element of a session's output stream: zero or more progress
// events followed by exactly one final or error event.
type Event struct {
	Type     EventType     `json:"type"`
	Message  string        `json:"message,omitempty"`
	DocID    string        `json:"docId,omitempty"`
	DocTitle string        `json:"docTitle,omitempty"`
	Data     *action.Batch `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == EventFinal || e.Type == EventError
}
