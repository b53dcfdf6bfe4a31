package model

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocType string

const (
	DocTypeNote DocType = "note"
	DocTypeList DocType = "list"
)

func (t DocType) Valid() bool {
	return t == DocTypeNote || t == DocTypeList
}

type ListType string

const (
	ListTypeNormal  ListType = "normal"
	ListTypeGrocery ListType = "grocery"
)

func (t ListType) Valid() bool {
	return t == ListTypeNormal || t == ListTypeGrocery
}

type Metadata struct {
	ListType ListType `json:"listType,omitempty"`
}

// Item is one entry of a list document. Its ID is assigned once and never reused.
type Item struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
	Quantity  string `json:"quantity"`
}

// Document is a note or a list. Notes carry Note, lists carry Items.
type Document struct {
	ID        string
	OwnerID   string
	Title     string
	Summary   string
	Type      DocType
	Tags      []string
	Metadata  Metadata
	Note      string
	Items     []Item
	Pinned    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type documentJSON struct {
	ID        string          `json:"docId"`
	Title     string          `json:"docTitle"`
	Summary   string          `json:"docSummary"`
	Type      DocType         `json:"docType"`
	Tags      []string        `json:"docTags"`
	Metadata  Metadata        `json:"docMetadata"`
	Content   json.RawMessage `json:"docContent,omitempty"`
	Pinned    bool            `json:"isPinned"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(documentJSON{
		ID:        d.ID,
		Title:     d.Title,
		Summary:   d.Summary,
		Type:      d.Type,
		Tags:      tags,
		Metadata:  d.Metadata,
		Content:   d.ContentJSON(),
		Pinned:    d.Pinned,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	})
}

// ContentJSON renders the content the way clients and the resolver see it:
// a string for notes, an item array for lists.
func (d *Document) ContentJSON() json.RawMessage {
	var (
		b   []byte
		err error
	)
	if d.Type == DocTypeList {
		items := d.Items
		if items == nil {
			items = []Item{}
		}
		b, err = json.Marshal(items)
	} else {
		b, err = json.Marshal(d.Note)
	}
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}

// ContentText is the verbatim content used in grounding messages.
func (d *Document) ContentText() string {
	if d.Type == DocTypeList {
		return string(d.ContentJSON())
	}
	return d.Note
}

func (d *Document) IsEmpty() bool {
	if d.Type == DocTypeList {
		return len(d.Items) == 0
	}
	return d.Note == ""
}

// FindItem returns the index of the item with the given id, or -1.
func (d *Document) FindItem(itemID string) int {
	for i := range d.Items {
		if d.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can stage edits before persisting.
func (d *Document) Clone() *Document {
	c := *d
	if d.Tags != nil {
		c.Tags = append([]string(nil), d.Tags...)
	}
	if d.Items != nil {
		c.Items = append([]Item(nil), d.Items...)
	}
	return &c
}

// IndexEntry is the content-free view of a document handed to the resolver.
type IndexEntry struct {
	ID       string   `json:"docId"`
	Title    string   `json:"docTitle"`
	Summary  string   `json:"docSummary"`
	Type     DocType  `json:"docType"`
	ListType ListType `json:"listType,omitempty"`
	Tags     []string `json:"docTags,omitempty"`
}

func (d *Document) Index() IndexEntry {
	return IndexEntry{
		ID:       d.ID,
		Title:    d.Title,
		Summary:  d.Summary,
		Type:     d.Type,
		ListType: d.Metadata.ListType,
		Tags:     d.Tags,
	}
}

// SortDocuments orders pinned documents first, then most recently updated.
func SortDocuments(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Pinned != docs[j].Pinned {
			return docs[i].Pinned
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
}

type CreateDocResponse struct {
	DocID string `json:"docId"`
}

type RenameRequest struct {
	Title string `json:"docTitle"`
}

type PinRequest struct {
	Pinned bool `json:"isPinned"`
}

type NoteRequest struct {
	DocID   string `json:"docId"`
	Content string `json:"docContent"`
}

type ItemRequest struct {
	DocID     string `json:"docId"`
	ItemID    string `json:"itemId"`
	Content   string `json:"itemContent"`
	Completed bool   `json:"itemCompleted"`
	Quantity  string `json:"itemQuantity"`
}
