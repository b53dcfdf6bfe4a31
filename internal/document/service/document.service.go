package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"
	"pocketmemory/internal/mutation"
	"pocketmemory/pkg/logger"
	"pocketmemory/socket"
)

var ErrInvalidInput = errors.New("invalid input")

// Repository is the document store the service reads and edits.
type Repository interface {
	mutation.Store
	List(ctx context.Context, ownerID string) ([]*model.Document, error)
	UpdateTitle(ctx context.Context, ownerID, docID, title string, at time.Time) error
	SetPinned(ctx context.Context, ownerID, docID string, pinned bool, at time.Time) error
}

// Publisher delivers live events to a user's connected clients.
type Publisher interface {
	Publish(userID, msgType, docID string, payload any)
}

type DocumentService struct {
	Repo   Repository
	Engine *mutation.Engine
	Hub    Publisher
	now    func() time.Time
}

func NewDocumentService(repo Repository, engine *mutation.Engine, hub Publisher) *DocumentService {
	return &DocumentService{
		Repo:   repo,
		Engine: engine,
		Hub:    hub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *DocumentService) GetDocuments(ctx context.Context, userID string) ([]*model.Document, error) {
	docs, err := s.Repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	model.SortDocuments(docs)
	return docs, nil
}

// Index is the content-free listing handed to the resolver.
func (s *DocumentService) Index(ctx context.Context, userID string) ([]model.IndexEntry, error) {
	docs, err := s.GetDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	index := make([]model.IndexEntry, 0, len(docs))
	for _, d := range docs {
		index = append(index, d.Index())
	}
	return index, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, userID, docID string) (*model.Document, error) {
	if !action.ValidID(docID) {
		return nil, model.ErrDocumentNotFound
	}
	return s.Repo.Get(ctx, userID, docID)
}

// Apply runs a batch through the engine and publishes every effect.
func (s *DocumentService) Apply(ctx context.Context, userID string, batch *action.Batch) []mutation.Effect {
	effects := s.Engine.Apply(ctx, userID, batch)
	for _, eff := range effects {
		s.publish(userID, eff)
	}
	return effects
}

func (s *DocumentService) CreateDocument(ctx context.Context, userID string, c action.CreateDocument) (string, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !c.DocType.Valid() {
		return "", fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, c.DocType)
	}
	if len(c.Tags) > action.MaxTags {
		return "", fmt.Errorf("%w: at most %d tags", ErrInvalidInput, action.MaxTags)
	}
	eff, err := s.applyOne(ctx, userID, c)
	if err != nil {
		return "", err
	}
	return eff.DocID, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, userID, docID string) error {
	if err := requireID(docID); err != nil {
		return err
	}
	_, err := s.applyOne(ctx, userID, action.DeleteDocument{DocID: docID})
	return err
}

func (s *DocumentService) UpdateTitle(ctx context.Context, userID, docID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := requireID(docID); err != nil {
		return err
	}
	if err := s.Repo.UpdateTitle(ctx, userID, docID, title, s.now()); err != nil {
		return err
	}
	s.Hub.Publish(userID, socket.ChangedType, docID, map[string]string{"docTitle": title})
	return nil
}

func (s *DocumentService) SetPinned(ctx context.Context, userID, docID string, pinned bool) error {
	if err := requireID(docID); err != nil {
		return err
	}
	if err := s.Repo.SetPinned(ctx, userID, docID, pinned, s.now()); err != nil {
		return err
	}
	s.Hub.Publish(userID, socket.ChangedType, docID, map[string]bool{"isPinned": pinned})
	return nil
}

// SaveNote replaces a note's whole body.
func (s *DocumentService) SaveNote(ctx context.Context, userID string, req model.NoteRequest) (*model.Document, error) {
	return s.modify(ctx, userID, req.DocID, action.EditNote{Content: req.Content})
}

func (s *DocumentService) AddItem(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: item content is required", ErrInvalidInput)
	}
	return s.modify(ctx, userID, req.DocID, action.AddListItem{Content: req.Content, Completed: req.Completed})
}

func (s *DocumentService) EditItem(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: item content is required", ErrInvalidInput)
	}
	if err := requireID(req.ItemID); err != nil {
		return nil, err
	}
	return s.modify(ctx, userID, req.DocID, action.EditListItem{ItemID: req.ItemID, Content: req.Content, Completed: req.Completed})
}

func (s *DocumentService) DeleteItem(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error) {
	if err := requireID(req.ItemID); err != nil {
		return nil, err
	}
	return s.modify(ctx, userID, req.DocID, action.DeleteListItem{ItemID: req.ItemID})
}

// ToggleItem flips an item's completion and keeps its text.
func (s *DocumentService) ToggleItem(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error) {
	if err := requireID(req.ItemID); err != nil {
		return nil, err
	}
	doc, err := s.GetDocument(ctx, userID, req.DocID)
	if err != nil {
		return nil, err
	}
	i := doc.FindItem(req.ItemID)
	if i < 0 {
		return nil, fmt.Errorf("%w: item %s not found", ErrInvalidInput, req.ItemID)
	}
	item := doc.Items[i]
	return s.modify(ctx, userID, req.DocID, action.EditListItem{ItemID: item.ID, Content: item.Content, Completed: !item.Completed})
}

// SetItemQuantity records a free-form amount ("2", "500 g") on a list item.
// An empty quantity clears it.
func (s *DocumentService) SetItemQuantity(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error) {
	if err := requireID(req.ItemID); err != nil {
		return nil, err
	}
	doc, err := s.GetDocument(ctx, userID, req.DocID)
	if err != nil {
		return nil, err
	}
	if doc.Type != model.DocTypeList {
		return nil, fmt.Errorf("%w: %s is not a list", ErrInvalidInput, doc.ID)
	}
	i := doc.FindItem(req.ItemID)
	if i < 0 {
		return nil, fmt.Errorf("%w: item %s not found", ErrInvalidInput, req.ItemID)
	}
	doc.Items[i].Quantity = strings.TrimSpace(req.Quantity)
	doc.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.publish(userID, mutation.Effect{
		Kind:     mutation.EffectChanged,
		Action:   action.KindModify,
		DocID:    doc.ID,
		Title:    doc.Title,
		Document: doc,
	})
	return doc, nil
}

func (s *DocumentService) modify(ctx context.Context, userID, docID string, mod action.Modification) (*model.Document, error) {
	if err := requireID(docID); err != nil {
		return nil, err
	}
	eff, err := s.applyOne(ctx, userID, action.ModifyDocument{DocID: docID, Modifications: []action.Modification{mod}})
	if err != nil {
		return nil, err
	}
	return eff.Document, nil
}

func (s *DocumentService) applyOne(ctx context.Context, userID string, a action.Action) (mutation.Effect, error) {
	effects := s.Apply(ctx, userID, &action.Batch{Actions: []action.Action{a}})
	eff := effects[0]
	if eff.Kind == mutation.EffectFailed {
		logger.Sugar.Warnf("Direct %s on %s failed: %v", a.Kind(), eff.DocID, eff.Err)
		if errors.Is(eff.Err, mutation.ErrWrongDocType) {
			return eff, fmt.Errorf("%w: %v", ErrInvalidInput, eff.Err)
		}
		return eff, eff.Err
	}
	return eff, nil
}

func (s *DocumentService) publish(userID string, eff mutation.Effect) {
	var msgType string
	switch eff.Kind {
	case mutation.EffectCaptured:
		msgType = socket.CapturedType
	case mutation.EffectChanged:
		msgType = socket.ChangedType
	case mutation.EffectDeleted:
		msgType = socket.DeletedType
	case mutation.EffectOpened:
		msgType = socket.OpenedType
	default:
		msgType = socket.FailedType
	}
	s.Hub.Publish(userID, msgType, eff.DocID, eff)
}

func requireID(id string) error {
	if !action.ValidID(id) {
		return fmt.Errorf("%w: %q is not a valid id", ErrInvalidInput, id)
	}
	return nil
}
