// Package mutation applies validated action batches to the document store
// and reports one effect per action.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrWrongDocType        = errors.New("modification does not match document type")
	ErrUnknownAction       = errors.New("unknown action type")
	ErrUnknownModification = errors.New("unknown modification type")
)

// Store is the document persistence the engine mutates.
type Store interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, ownerID, docID string) (*model.Document, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, ownerID, docID string) error
}

type EffectKind string

const (
	EffectCaptured EffectKind = "captured"
	EffectChanged  EffectKind = "changed"
	EffectDeleted  EffectKind = "deleted"
	EffectOpened   EffectKind = "opened"
	EffectFailed   EffectKind = "failed"
)

// Effect records the outcome of one action for the UI.
type Effect struct {
	Kind     EffectKind      `json:"kind"`
	Action   action.Kind     `json:"actionType,omitempty"`
	DocID    string          `json:"docId,omitempty"`
	Title    string          `json:"docTitle,omitempty"`
	Document *model.Document `json:"document,omitempty"`
	Error    string          `json:"error,omitempty"`
	Err      error           `json:"-"`
}

type Engine struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewEngine(store Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Apply runs every action of the batch in order. Actions are independent:
// a failed action yields a failed effect and the rest still run.
func (e *Engine) Apply(ctx context.Context, ownerID string, batch *action.Batch) []Effect {
	effects := make([]Effect, 0, batch.Len())
	if batch == nil {
		return effects
	}

	for i, a := range batch.Actions {
		var (
			eff Effect
			err error
		)
		if err = ctx.Err(); err == nil {
			eff, err = e.apply(ctx, ownerID, a)
		}
		if err != nil {
			eff = Effect{Kind: EffectFailed, DocID: targetOf(a), Error: err.Error(), Err: err}
			if a != nil {
				eff.Action = a.Kind()
			}
			e.log.Warn("action failed",
				zap.Int("index", i),
				zap.String("owner", ownerID),
				zap.String("docId", eff.DocID),
				zap.Error(err))
		}
		effects = append(effects, eff)
	}
	return effects
}

func (e *Engine) apply(ctx context.Context, ownerID string, a action.Action) (Effect, error) {
	switch a := a.(type) {
	case action.CreateDocument:
		return e.create(ctx, ownerID, a)
	case action.OpenDocument:
		doc, err := e.store.Get(ctx, ownerID, a.DocID)
		if err != nil {
			return Effect{}, err
		}
		return Effect{Kind: EffectOpened, Action: action.KindOpen, DocID: doc.ID, Title: doc.Title}, nil
	case action.ModifyDocument:
		return e.modify(ctx, ownerID, a)
	case action.DeleteDocument:
		doc, err := e.store.Get(ctx, ownerID, a.DocID)
		if err != nil {
			return Effect{}, err
		}
		if err := e.store.Delete(ctx, ownerID, a.DocID); err != nil {
			return Effect{}, err
		}
		return Effect{Kind: EffectDeleted, Action: action.KindDelete, DocID: doc.ID, Title: doc.Title}, nil
	default:
		return Effect{}, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

func (e *Engine) create(ctx context.Context, ownerID string, c action.CreateDocument) (Effect, error) {
	now := e.now()
	doc := &model.Document{
		ID:        e.newID(),
		OwnerID:   ownerID,
		Title:     c.Title,
		Summary:   c.Summary,
		Type:      c.DocType,
		Tags:      c.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch c.DocType {
	case model.DocTypeList:
		doc.Metadata.ListType = c.ListType
		if !doc.Metadata.ListType.Valid() {
			doc.Metadata.ListType = model.ListTypeNormal
		}
		doc.Items = make([]model.Item, 0, len(c.Items))
		for _, content := range c.Items {
			doc.Items = append(doc.Items, model.Item{ID: e.newID(), Content: content})
		}
	default:
		doc.Note = c.Note
	}

	if err := e.store.Create(ctx, doc); err != nil {
		return Effect{}, err
	}
	e.log.Info("document captured", zap.String("docId", doc.ID), zap.String("docType", string(doc.Type)))
	return Effect{Kind: EffectCaptured, Action: action.KindCreate, DocID: doc.ID, Title: doc.Title, Document: doc}, nil
}

// modify stages every modification on a copy and persists once. Any
// modification error leaves the stored document untouched.
func (e *Engine) modify(ctx context.Context, ownerID string, m action.ModifyDocument) (Effect, error) {
	stored, err := e.store.Get(ctx, ownerID, m.DocID)
	if err != nil {
		return Effect{}, err
	}
	doc := stored.Clone()
	log := e.log.With(zap.String("docId", doc.ID))

	for i, mod := range m.Modifications {
		if err := e.modifyOne(doc, mod, log); err != nil {
			return Effect{}, fmt.Errorf("modification %d: %w", i, err)
		}
	}
	doc.UpdatedAt = e.now()

	if err := e.store.Update(ctx, doc); err != nil {
		return Effect{}, err
	}
	return Effect{Kind: EffectChanged, Action: action.KindModify, DocID: doc.ID, Title: doc.Title, Document: doc}, nil
}

func (e *Engine) modifyOne(doc *model.Document, mod action.Modification, log *zap.Logger) error {
	switch mod := mod.(type) {
	case action.AddListItem:
		if doc.Type != model.DocTypeList {
			return fmt.Errorf("%w: %s on %s", ErrWrongDocType, mod.ModKind(), doc.Type)
		}
		doc.Items = append(doc.Items, model.Item{ID: e.newID(), Content: mod.Content, Completed: mod.Completed})
	case action.EditListItem:
		if doc.Type != model.DocTypeList {
			return fmt.Errorf("%w: %s on %s", ErrWrongDocType, mod.ModKind(), doc.Type)
		}
		i := doc.FindItem(mod.ItemID)
		if i < 0 {
			log.Warn("edit of missing item ignored", zap.String("itemId", mod.ItemID))
			return nil
		}
		doc.Items[i].Content = mod.Content
		doc.Items[i].Completed = mod.Completed
	case action.DeleteListItem:
		if doc.Type != model.DocTypeList {
			return fmt.Errorf("%w: %s on %s", ErrWrongDocType, mod.ModKind(), doc.Type)
		}
		i := doc.FindItem(mod.ItemID)
		if i < 0 {
			log.Warn("delete of missing item ignored", zap.String("itemId", mod.ItemID))
			return nil
		}
		doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
	case action.EditNote:
		if doc.Type != model.DocTypeNote {
			return fmt.Errorf("%w: %s on %s", ErrWrongDocType, mod.ModKind(), doc.Type)
		}
		doc.Note = mod.Content
	default:
		return fmt.Errorf("%w: %T", ErrUnknownModification, mod)
	}
	return nil
}

func targetOf(a action.Action) string {
	switch a := a.(type) {
	case action.OpenDocument:
		return a.DocID
	case action.ModifyDocument:
		return a.DocID
	case action.DeleteDocument:
		return a.DocID
	}
	return ""
}
