// Package capture exposes the resolution loop over HTTP: streamed action
// resolution for a user's utterance, and conversational answers.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"
	"pocketmemory/internal/document/service"
	"pocketmemory/internal/mutation"
	"pocketmemory/internal/resolve"
	"pocketmemory/middleware"
	"pocketmemory/pkg/logger"
)

const (
	maxBody = 1 << 20
	// applyTimeout bounds a validated batch once it no longer follows the request.
	applyTimeout = 30 * time.Second
)

// Answerer produces a streamed conversational reply.
type Answerer interface {
	Answer(ctx context.Context, transcript []resolve.Turn, index []model.IndexEntry, emit func(string) error) error
}

type Handler struct {
	Loop     *resolve.Loop
	Answerer Answerer
	Docs     *service.DocumentService
}

func NewHandler(loop *resolve.Loop, answerer Answerer, docs *service.DocumentService) *Handler {
	return &Handler{Loop: loop, Answerer: answerer, Docs: docs}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type QueryRequest struct {
	Text     string    `json:"text"`
	Messages []Message `json:"messages"`
	Apply    bool      `json:"apply"`
}

type effectsEvent struct {
	Type    string            `json:"type"`
	Effects []mutation.Effect `json:"effects"`
}

const EventEffects = "effects"

func transcript(text string, messages []Message) ([]resolve.Turn, error) {
	if len(messages) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("text or messages is required")
		}
		return resolve.Utterance(text), nil
	}
	turns := make([]resolve.Turn, 0, len(messages))
	for i, m := range messages {
		var role resolve.Role
		switch m.Role {
		case "user":
			role = resolve.RoleUser
		case "assistant":
			role = resolve.RoleAssistant
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", i, m.Role)
		}
		turns = append(turns, resolve.Turn{Role: role, Content: m.Content})
	}
	if turns[len(turns)-1].Role != resolve.RoleUser {
		return nil, errors.New("last message must come from the user")
	}
	return turns, nil
}

// Query streams one resolution session as newline-delimited JSON. With
// apply set, the final batch is applied and its effects are written just
// before the final event.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	turns, err := transcript(req.Text, req.Messages)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	index, err := h.Docs.Index(r.Context(), userID)
	if err != nil {
		logger.Sugar.Errorf("Query: failed to build index for %s: %v", userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	out := newLineWriter(w)

	events := h.Loop.Stream(ctx, resolve.Input{
		Transcript: turns,
		Index:      index,
		Source: resolve.SourceFunc(func(ctx context.Context, id string) (*model.Document, error) {
			return h.Docs.GetDocument(ctx, userID, id)
		}),
	})
	for ev := range events {
		if ev.Type == resolve.EventFinal && req.Apply {
			effects := h.apply(ctx, userID, ev.Data)
			if err := out.write(effectsEvent{Type: EventEffects, Effects: effects}); err != nil {
				cancel()
				continue
			}
		}
		if ev.Type == resolve.EventError {
			logger.Sugar.Warnf("Query: session for %s failed: %s", userID, ev.Error)
		}
		if err := out.write(ev); err != nil {
			logger.Sugar.Infof("Query: client for %s went away: %v", userID, err)
			cancel()
		}
	}
}

// apply runs a validated batch to completion even if the client leaves
// midway. Effects still reach the user's other devices through the hub.
func (h *Handler) apply(ctx context.Context, userID string, batch *action.Batch) []mutation.Effect {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), applyTimeout)
	defer cancel()
	return h.Docs.Apply(ctx, userID, batch)
}

// Ask streams a plain-text answer grounded in the user's document index.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	turns, err := transcript(req.Text, req.Messages)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	index, err := h.Docs.Index(r.Context(), userID)
	if err != nil {
		logger.Sugar.Errorf("Ask: failed to build index for %s: %v", userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	started := false
	flusher, _ := w.(http.Flusher)
	err = h.Answerer.Answer(r.Context(), turns, index, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		logger.Sugar.Errorf("Ask: answer for %s failed: %v", userID, err)
		if !started {
			http.Error(w, "Failed to generate an answer", http.StatusBadGateway)
		}
	}
}

type lineWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
	broken  bool
}

func newLineWriter(w http.ResponseWriter) *lineWriter {
	f, _ := w.(http.Flusher)
	return &lineWriter{w: w, flusher: f, enc: json.NewEncoder(w)}
}

// write emits v as one line. After the first failure every call fails.
func (l *lineWriter) write(v any) error {
	if l.broken {
		return errors.New("stream closed")
	}
	if err := l.enc.Encode(v); err != nil {
		l.broken = true
		return err
	}
	if l.flusher != nil {
		l.flusher.Flush()
	}
	return nil
}
