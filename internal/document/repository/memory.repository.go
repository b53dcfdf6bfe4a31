package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pocketmemory/internal/document/model"
)

// MemoryRepository keeps documents in process memory. It backs `serve
// --memory` for local development and the HTTP-level tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]*model.Document)}
}

func (r *MemoryRepository) Create(_ context.Context, doc *model.Document) error {
	if err := checkItems(doc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, ownerID, docID string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[docID]
	if !ok || d.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	return d.Clone(), nil
}

// List returns the owner's documents with their content, pinned first.
func (r *MemoryRepository) List(_ context.Context, ownerID string) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := []*model.Document{}
	for _, d := range r.docs {
		if d.OwnerID != ownerID {
			continue
		}
		docs = append(docs, d.Clone())
	}
	model.SortDocuments(docs)
	return docs, nil
}

func (r *MemoryRepository) Update(_ context.Context, doc *model.Document) error {
	if err := checkItems(doc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[doc.ID]
	if !ok || d.OwnerID != doc.OwnerID {
		return ErrDocumentNotFound
	}
	c := doc.Clone()
	c.CreatedAt = d.CreatedAt
	r.docs[doc.ID] = c
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[docID]
	if !ok || d.OwnerID != ownerID {
		return ErrDocumentNotFound
	}
	delete(r.docs, docID)
	return nil
}

func (r *MemoryRepository) UpdateTitle(_ context.Context, ownerID, docID, title string, at time.Time) error {
	return r.edit(ownerID, docID, func(d *model.Document) {
		d.Title = title
		d.UpdatedAt = at
	})
}

func (r *MemoryRepository) SetPinned(_ context.Context, ownerID, docID string, pinned bool, at time.Time) error {
	return r.edit(ownerID, docID, func(d *model.Document) {
		d.Pinned = pinned
		d.UpdatedAt = at
	})
}

func (r *MemoryRepository) edit(ownerID, docID string, fn func(*model.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[docID]
	if !ok || d.OwnerID != ownerID {
		return ErrDocumentNotFound
	}
	fn(d)
	return nil
}

func checkItems(doc *model.Document) error {
	for _, it := range doc.Items {
		if it.Content == "" {
			return fmt.Errorf("item %s of doc %s has empty content", it.ID, doc.ID)
		}
	}
	return nil
}
