package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pocketmemory/internal/document/model"
	"pocketmemory/pkg/logger"

	"github.com/lib/pq"
)

// ErrDocumentNotFound is returned when no document matches the id and owner.
var ErrDocumentNotFound = model.ErrDocumentNotFound

const documentColumns = `id, title, summary, doc_type, list_type, tags, note, is_pinned, created_at, updated_at`

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

// Create inserts a document and, for lists, its items in one transaction.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO documents (id, owner_id, title, summary, doc_type, list_type, tags, note, is_pinned, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			doc.ID, doc.OwnerID, doc.Title, doc.Summary, string(doc.Type), string(doc.Metadata.ListType),
			pq.Array(tagsOrEmpty(doc.Tags)), doc.Note, doc.Pinned, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, doc)
	})
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", doc.ID, err)
	}
	return err
}

// Get loads one document with its full content.
func (r *DocumentRepository) Get(ctx context.Context, ownerID, docID string) (*model.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, docID, ownerID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get doc %s: %v", docID, err)
		return nil, err
	}
	doc.OwnerID = ownerID

	if doc.Type == model.DocTypeList {
		items, err := r.items(ctx, docID)
		if err != nil {
			return nil, err
		}
		doc.Items = items
	}
	return doc, nil
}

func (r *DocumentRepository) items(ctx context.Context, docID string) ([]model.Item, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, content, completed, quantity FROM list_items WHERE document_id = $1 ORDER BY position ASC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get items for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Content, &it.Completed, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns the owner's documents with their content, pinned first and
// then most recently updated.
func (r *DocumentRepository) List(ctx context.Context, ownerID string) ([]*model.Document, error) {
	docs, err := r.listDocuments(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		if d.Type == model.DocTypeList {
			d.Items = []model.Item{}
			byID[d.ID] = d
		}
	}
	if len(byID) == 0 {
		return docs, nil
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT li.document_id, li.id, li.content, li.completed, li.quantity
		FROM list_items li JOIN documents d ON d.id = li.document_id
		WHERE d.owner_id = $1 ORDER BY li.document_id, li.position ASC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get items for user %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docID string
			it    model.Item
		)
		if err := rows.Scan(&docID, &it.ID, &it.Content, &it.Completed, &it.Quantity); err != nil {
			return nil, err
		}
		if d, ok := byID[docID]; ok {
			d.Items = append(d.Items, it)
		}
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) listDocuments(ctx context.Context, ownerID string) ([]*model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE owner_id = $1
		ORDER BY is_pinned DESC, updated_at DESC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get documents for user %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	docs := []*model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		doc.OwnerID = ownerID
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Update persists every mutable field. List items are rewritten in order so
// the stored positions always match the slice.
func (r *DocumentRepository) Update(ctx context.Context, doc *model.Document) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE documents SET title = $1, summary = $2, list_type = $3, tags = $4, note = $5, is_pinned = $6, updated_at = $7
			WHERE id = $8 AND owner_id = $9`,
			doc.Title, doc.Summary, string(doc.Metadata.ListType), pq.Array(tagsOrEmpty(doc.Tags)), doc.Note, doc.Pinned, doc.UpdatedAt,
			doc.ID, doc.OwnerID)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if doc.Type != model.DocTypeList {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE document_id = $1`, doc.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, doc)
	})
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		logger.Sugar.Errorf("Failed to update doc %s: %v", doc.ID, err)
	}
	return err
}

// Delete removes the document; its items go with it through the foreign key cascade.
func (r *DocumentRepository) Delete(ctx context.Context, ownerID, docID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1 AND owner_id = $2", docID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return err
	}
	return requireRow(res)
}

func (r *DocumentRepository) UpdateTitle(ctx context.Context, ownerID, docID, title string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE documents SET title = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4", title, at, docID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for doc %s: %v", docID, err)
		return err
	}
	return requireRow(res)
}

func (r *DocumentRepository) SetPinned(ctx context.Context, ownerID, docID string, pinned bool, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE documents SET is_pinned = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4", pinned, at, docID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to pin doc %s: %v", docID, err)
		return err
	}
	return requireRow(res)
}

func (r *DocumentRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Sugar.Warnf("Rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, doc *model.Document) error {
	for pos, it := range doc.Items {
		if it.Content == "" {
			return fmt.Errorf("item %s of doc %s has empty content", it.ID, doc.ID)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO list_items (id, document_id, position, content, completed, quantity) VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, doc.ID, pos, it.Content, it.Completed, it.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var (
		doc      model.Document
		docType  string
		listType string
		tags     pq.StringArray
	)
	err := s.Scan(&doc.ID, &doc.Title, &doc.Summary, &docType, &listType, &tags, &doc.Note, &doc.Pinned, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Type = model.DocType(docType)
	doc.Metadata.ListType = model.ListType(listType)
	doc.Tags = []string(tags)
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &doc, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
