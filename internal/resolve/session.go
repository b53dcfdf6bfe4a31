package resolve

import (
	"fmt"
	"strings"

	"pocketmemory/internal/document/model"

	"go.uber.org/zap"
)

type State int

const (
	StateAwaitingResolver State = iota
	StateResolvingTool
	StateValidating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingResolver:
		return "AWAITING_RESOLVER"
	case StateResolvingTool:
		return "RESOLVING_TOOL"
	case StateValidating:
		return "VALIDATING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// session is the mutable state of one utterance's resolution. Nothing in it
// is shared with other sessions.
type session struct {
	state      State
	round      int
	cache      *Cache
	fetched    map[string]bool
	transcript []Turn
	index      []model.IndexEntry
	source     DocumentSource
	log        *zap.Logger
}

func newSession(in Input, log *zap.Logger) *session {
	transcript := make([]Turn, len(in.Transcript))
	copy(transcript, in.Transcript)
	return &session{
		state:      StateAwaitingResolver,
		cache:      NewCache(),
		fetched:    make(map[string]bool),
		transcript: transcript,
		index:      in.Index,
		source:     in.Source,
		log:        log,
	}
}

func (s *session) enter(next State) {
	if s.state == next {
		return
	}
	s.log.Debug("session state", zap.Stringer("from", s.state), zap.Stringer("to", next), zap.Int("round", s.round))
	s.state = next
}

func (s *session) request() *Request {
	req := &Request{
		Transcript: s.transcript,
		Index:      s.index,
	}
	if s.cache.GateOpen() {
		req.Tools = []Tool{getDocument}
	}
	return req
}

func (s *session) appendCall(call ToolCall, output []byte) {
	c := call
	s.transcript = append(s.transcript,
		Turn{Role: RoleAssistant, Call: &c},
		Turn{Role: RoleContext, Result: &ToolResult{CallID: call.ID, Name: call.Name, Output: output}},
	)
}

// contentTurn consolidates every cached document into one grounding message.
func (s *session) contentTurn() Turn {
	var b strings.Builder
	b.WriteString("DOC_CONTENT (authoritative):\n")
	for _, e := range s.cache.Entries() {
		label := "docId=" + e.DocID
		if e.Title != "" {
			label += " (" + e.Title + ")"
		}
		fmt.Fprintf(&b, "---- %s ----\n%q\n---- end %s ----\n", label, e.Content, label)
	}
	if s.cache.GateOpen() {
		b.WriteString("\nRules:\n")
		b.WriteString("- Never call " + GetDocumentTool + " again for a docId listed above.\n")
		b.WriteString("- Use the content above to produce the final JSON actions now.\n")
		b.WriteString("- Call " + GetDocumentTool + " only for a different docId that is not listed above.\n")
	}
	return Turn{Role: RoleContext, Content: b.String()}
}
