// Package action defines the closed grammar of actions the resolver may
// produce and the strict parser that admits a batch only when every action
// and modification in it is well formed.
package action

import "pocketmemory/internal/document/model"

type Kind string

const (
	KindCreate Kind = "createDocument"
	KindOpen   Kind = "openDocument"
	KindModify Kind = "modifyDocument"
	KindDelete Kind = "deleteDocument"
)

// Action is one top-level operation of a batch.
type Action interface {
	Kind() Kind
}

type CreateDocument struct {
	Title    string
	Summary  string
	DocType  model.DocType
	Tags     []string
	ListType model.ListType
	// Note is the initial body of a note.
	Note string
	// Items are the initial entries of a list, in order.
	Items []string
}

type OpenDocument struct {
	DocID string
}

type DeleteDocument struct {
	DocID string
}

type ModifyDocument struct {
	DocID         string
	Modifications []Modification
}

func (CreateDocument) Kind() Kind { return KindCreate }
func (OpenDocument) Kind() Kind   { return KindOpen }
func (DeleteDocument) Kind() Kind { return KindDelete }
func (ModifyDocument) Kind() Kind { return KindModify }

type ModKind string

const (
	ModAddListItem    ModKind = "addListItem"
	ModEditListItem   ModKind = "editListItem"
	ModDeleteListItem ModKind = "deleteListItem"
	ModEditNote       ModKind = "editNote"
)

// Modification is one step of a modifyDocument action. Edits replace the
// whole unit (an item's text or a note's body), never a diff.
type Modification interface {
	ModKind() ModKind
}

type AddListItem struct {
	Content   string
	Completed bool
}

type EditListItem struct {
	ItemID    string
	Content   string
	Completed bool
}

type DeleteListItem struct {
	ItemID string
}

type EditNote struct {
	Content string
}

func (AddListItem) ModKind() ModKind    { return ModAddListItem }
func (EditListItem) ModKind() ModKind   { return ModEditListItem }
func (DeleteListItem) ModKind() ModKind { return ModDeleteListItem }
func (EditNote) ModKind() ModKind       { return ModEditNote }

// Batch is the ordered list of actions produced by one resolution session.
type Batch struct {
	Actions []Action
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Actions)
}
