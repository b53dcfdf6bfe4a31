package action

import (
	"encoding/json"
	"fmt"

	"pocketmemory/internal/document/model"
)

type envelope struct {
	ActionType Kind `json:"actionType"`
	Payload    any  `json:"actionPayload"`
}

type createWire struct {
	Title    string        `json:"docTitle"`
	Summary  string        `json:"docSummary"`
	DocType  model.DocType `json:"docType"`
	Tags     []string      `json:"docTags"`
	Content  any           `json:"docContent"`
	Metadata *metadataWire `json:"docMetadata,omitempty"`
}

type metadataWire struct {
	ListType model.ListType `json:"listType"`
}

type docIDWire struct {
	DocID string `json:"docId"`
}

type modifyWire struct {
	DocID         string    `json:"docId"`
	Modifications []modWire `json:"modifications"`
}

type modWire struct {
	ModType ModKind `json:"modType"`
	Payload any     `json:"modPayload"`
}

type itemWire struct {
	ItemID    string `json:"itemId,omitempty"`
	Content   string `json:"itemContent"`
	Completed bool   `json:"itemCompleted"`
}

type itemIDWire struct {
	ItemID string `json:"itemId"`
}

type noteWire struct {
	Content string `json:"docContent"`
}

// MarshalJSON writes the batch in the same wire format Parse accepts.
func (b Batch) MarshalJSON() ([]byte, error) {
	out := struct {
		Actions []envelope `json:"actions"`
	}{Actions: make([]envelope, 0, len(b.Actions))}

	for _, a := range b.Actions {
		env, err := encodeAction(a)
		if err != nil {
			return nil, err
		}
		out.Actions = append(out.Actions, env)
	}
	return json.Marshal(out)
}

func encodeAction(a Action) (envelope, error) {
	switch a := a.(type) {
	case CreateDocument:
		w := createWire{Title: a.Title, Summary: a.Summary, DocType: a.DocType, Tags: a.Tags}
		if w.Tags == nil {
			w.Tags = []string{}
		}
		if a.DocType == model.DocTypeList {
			items := a.Items
			if items == nil {
				items = []string{}
			}
			w.Content = items
			w.Metadata = &metadataWire{ListType: a.ListType}
		} else {
			w.Content = a.Note
		}
		return envelope{ActionType: KindCreate, Payload: w}, nil
	case OpenDocument:
		return envelope{ActionType: KindOpen, Payload: docIDWire{DocID: a.DocID}}, nil
	case DeleteDocument:
		return envelope{ActionType: KindDelete, Payload: docIDWire{DocID: a.DocID}}, nil
	case ModifyDocument:
		w := modifyWire{DocID: a.DocID, Modifications: make([]modWire, 0, len(a.Modifications))}
		for _, m := range a.Modifications {
			mw, err := encodeModification(m)
			if err != nil {
				return envelope{}, err
			}
			w.Modifications = append(w.Modifications, mw)
		}
		return envelope{ActionType: KindModify, Payload: w}, nil
	default:
		return envelope{}, fmt.Errorf("cannot encode action %T", a)
	}
}

func encodeModification(m Modification) (modWire, error) {
	switch m := m.(type) {
	case AddListItem:
		return modWire{ModType: ModAddListItem, Payload: itemWire{Content: m.Content, Completed: m.Completed}}, nil
	case EditListItem:
		return modWire{ModType: ModEditListItem, Payload: itemWire{ItemID: m.ItemID, Content: m.Content, Completed: m.Completed}}, nil
	case DeleteListItem:
		return modWire{ModType: ModDeleteListItem, Payload: itemIDWire{ItemID: m.ItemID}}, nil
	case EditNote:
		return modWire{ModType: ModEditNote, Payload: noteWire{Content: m.Content}}, nil
	default:
		return modWire{}, fmt.Errorf("cannot encode modification %T", m)
	}
}
