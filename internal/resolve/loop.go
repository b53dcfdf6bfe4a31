package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrLoopExceeded = errors.New("resolution loop exceeded")
	ErrNoPayload    = errors.New("resolver returned no payload")
	// ErrUngrounded is returned when a content edit targets a document whose
	// content was never supplied during the session.
	ErrUngrounded = errors.New("edit without retrieved content")
)

const (
	DefaultMaxRounds       = 15
	DefaultSuspicionRounds = 5
)

type Config struct {
	MaxRounds       int
	SuspicionRounds int
}

func DefaultConfig() Config {
	return Config{MaxRounds: DefaultMaxRounds, SuspicionRounds: DefaultSuspicionRounds}
}

// Input starts one session.
type Input struct {
	Transcript []Turn
	Index      []model.IndexEntry
	Source     DocumentSource
}

// Utterance wraps a single plain-text request as a transcript.
func Utterance(text string) []Turn {
	return []Turn{{Role: RoleUser, Content: text}}
}

type Loop struct {
	resolver Resolver
	cfg      Config
	log      *zap.Logger
}

func NewLoop(r Resolver, cfg Config, log *zap.Logger) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.SuspicionRounds < 0 || cfg.SuspicionRounds >= cfg.MaxRounds {
		cfg.SuspicionRounds = min(DefaultSuspicionRounds, cfg.MaxRounds-1)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{resolver: r, cfg: cfg, log: log}
}

// Run drives one session to completion. progress, when non-nil, is called
// synchronously for every newly fetched document.
func (l *Loop) Run(ctx context.Context, in Input, progress func(Event)) (*action.Batch, error) {
	if progress == nil {
		progress = func(Event) {}
	}
	s := newSession(in, l.log.With(zap.String("session", uuid.NewString())))

	for s.round < l.cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			s.enter(StateFailed)
			return nil, err
		}
		if s.round > l.cfg.SuspicionRounds && s.cache.GateOpen() {
			s.log.Info("loop suspicion, closing retrieval gate", zap.Int("round", s.round))
			s.cache.CloseGate()
		}

		s.enter(StateAwaitingResolver)
		reply, err := l.resolver.Resolve(ctx, s.request())
		if err != nil {
			s.enter(StateFailed)
			return nil, fmt.Errorf("resolver round %d: %w", s.round, err)
		}

		if len(reply.Calls) == 0 {
			return l.validate(s, reply.Payload)
		}

		s.enter(StateResolvingTool)
		for _, call := range reply.Calls {
			if err := l.handleCall(ctx, s, call, progress); err != nil {
				s.enter(StateFailed)
				return nil, err
			}
		}
		if s.cache.Len() > 0 {
			s.transcript = append(s.transcript, s.contentTurn())
		}
		s.round++
	}

	s.enter(StateFailed)
	s.log.Warn("resolution loop exceeded", zap.Int("rounds", s.round))
	return nil, ErrLoopExceeded
}

func (l *Loop) validate(s *session, payload json.RawMessage) (*action.Batch, error) {
	s.enter(StateValidating)
	if len(payload) == 0 {
		s.enter(StateFailed)
		return nil, ErrNoPayload
	}
	batch, err := action.Parse(payload)
	if err != nil {
		s.enter(StateFailed)
		s.log.Warn("resolver payload rejected", zap.Error(err))
		return nil, err
	}
	if err := s.grounded(batch); err != nil {
		s.enter(StateFailed)
		s.log.Warn("resolver payload rejected", zap.Error(err))
		return nil, err
	}
	s.enter(StateDone)
	s.log.Info("session resolved", zap.Int("actions", batch.Len()), zap.Int("rounds", s.round))
	return batch, nil
}

// grounded rejects content edits against documents the resolver never read.
func (s *session) grounded(batch *action.Batch) error {
	for i, a := range batch.Actions {
		mod, ok := a.(action.ModifyDocument)
		if !ok {
			continue
		}
		if _, cached := s.cache.Lookup(mod.DocID); cached {
			continue
		}
		for _, m := range mod.Modifications {
			switch m.(type) {
			case action.EditNote, action.EditListItem, action.DeleteListItem:
				return fmt.Errorf("action %d on %s: %w", i, mod.DocID, ErrUngrounded)
			}
		}
	}
	return nil
}

type toolOutcome struct {
	Success    bool            `json:"success"`
	Skipped    bool            `json:"skipped,omitempty"`
	DocID      string          `json:"docId,omitempty"`
	DocTitle   string          `json:"docTitle,omitempty"`
	DocType    model.DocType   `json:"docType,omitempty"`
	DocContent json.RawMessage `json:"docContent,omitempty"`
	Note       string          `json:"note,omitempty"`
	Error      string          `json:"error,omitempty"`
}

const (
	noteOnce      = "This is the only time this content will be supplied. Do not request it again."
	noteEmpty     = " The document is empty; empty is itself the full content."
	noteSupplied  = "This document was already supplied above. Do not request it again; use the DOC_CONTENT already provided."
	noteGateShut  = "Document retrieval is no longer available. Produce the final JSON actions from what you already have."
	errMissingID  = "Missing docId. Provide the docId of the document to retrieve."
	errNotFound   = "Document not found."
	errUnknownFmt = "Unhandled tool: %s"
)

func (l *Loop) handleCall(ctx context.Context, s *session, call ToolCall, progress func(Event)) error {
	log := s.log.With(zap.Int("round", s.round), zap.String("tool", call.Name))

	if call.Name != GetDocumentTool {
		log.Warn("unhandled tool call")
		return s.answer(call, toolOutcome{Error: fmt.Sprintf(errUnknownFmt, call.Name)})
	}

	var args struct {
		DocID string `json:"docId"`
	}
	if len(call.Args) > 0 {
		_ = json.Unmarshal(call.Args, &args)
	}
	if args.DocID == "" {
		log.Warn("tool call without docId")
		return s.answer(call, toolOutcome{Error: errMissingID})
	}
	log = log.With(zap.String("docId", args.DocID))

	if s.fetched[args.DocID] {
		if s.cache.GateOpen() {
			log.Info("repeat request, closing retrieval gate")
			s.cache.CloseGate()
		}
		return s.answer(call, toolOutcome{Skipped: true, DocID: args.DocID, Note: noteSupplied})
	}
	if !s.cache.GateOpen() {
		log.Info("retrieval requested after gate closed")
		return s.answer(call, toolOutcome{DocID: args.DocID, Error: noteGateShut})
	}

	s.fetched[args.DocID] = true
	if !action.ValidID(args.DocID) {
		log.Warn("tool call with malformed docId")
		return s.answer(call, toolOutcome{DocID: args.DocID, Error: errNotFound})
	}

	doc, err := s.source.Document(ctx, args.DocID)
	if errors.Is(err, model.ErrDocumentNotFound) {
		log.Warn("requested document not found")
		return s.answer(call, toolOutcome{DocID: args.DocID, Error: errNotFound})
	}
	if err != nil {
		return fmt.Errorf("fetch document %s: %w", args.DocID, err)
	}

	if s.cache.Store(doc.ID, doc.ContentText(), doc.Title) {
		label := doc.Title
		if label == "" {
			label = "a document"
		}
		progress(Event{
			Type:     EventProgress,
			Message:  fmt.Sprintf("Scanning %s...", label),
			DocID:    doc.ID,
			DocTitle: doc.Title,
		})
	}
	log.Debug("document supplied")

	note := noteOnce
	if doc.IsEmpty() {
		note += noteEmpty
	}
	return s.answer(call, toolOutcome{
		Success:    true,
		DocID:      doc.ID,
		DocTitle:   doc.Title,
		DocType:    doc.Type,
		DocContent: doc.ContentJSON(),
		Note:       note,
	})
}

func (s *session) answer(call ToolCall, out toolOutcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode tool result: %w", err)
	}
	s.appendCall(call, b)
	return nil
}

// Stream runs a session in its own goroutine and returns its events. The
// channel carries progress events, then one final or error event, and is
// closed afterwards. Once ctx is done nothing more is sent.
func (l *Loop) Stream(ctx context.Context, in Input) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		send := func(ev Event) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		batch, err := l.Run(ctx, in, func(ev Event) { send(ev) })
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			send(Event{Type: EventError, Error: err.Error()})
			return
		}
		send(Event{Type: EventFinal, Data: batch})
	}()
	return out
}
