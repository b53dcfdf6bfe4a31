package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pocketmemory/internal/document/model"

	"github.com/google/uuid"
)

// ErrInvalid is wrapped by every grammar rejection.
var ErrInvalid = errors.New("invalid action batch")

const MaxTags = 3

// ValidationError names the offending JSON path.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Parse validates raw resolver output and returns the typed batch. Any
// violation rejects the whole batch; nothing is corrected.
func Parse(raw []byte) (*Batch, error) {
	top, err := object("$", raw, []string{"actions"}, nil)
	if err != nil {
		return nil, err
	}
	items, err := array("$.actions", top["actions"])
	if err != nil {
		return nil, err
	}

	batch := &Batch{Actions: make([]Action, 0, len(items))}
	for i, item := range items {
		a, err := parseAction(fmt.Sprintf("$.actions[%d]", i), item)
		if err != nil {
			return nil, err
		}
		batch.Actions = append(batch.Actions, a)
	}
	return batch, nil
}

// ParseCreate validates a bare createDocument payload, as sent by clients
// creating a document directly.
func ParseCreate(raw []byte) (CreateDocument, error) {
	a, err := parseCreate("$", raw)
	if err != nil {
		return CreateDocument{}, err
	}
	return a.(CreateDocument), nil
}

func parseAction(path string, raw json.RawMessage) (Action, error) {
	env, err := object(path, raw, []string{"actionType", "actionPayload"}, nil)
	if err != nil {
		return nil, err
	}
	kind, err := str(path+".actionType", env["actionType"])
	if err != nil {
		return nil, err
	}
	p := path + ".actionPayload"
	payload := env["actionPayload"]

	switch Kind(kind) {
	case KindCreate:
		return parseCreate(p, payload)
	case KindOpen:
		id, err := docIDPayload(p, payload)
		if err != nil {
			return nil, err
		}
		return OpenDocument{DocID: id}, nil
	case KindDelete:
		id, err := docIDPayload(p, payload)
		if err != nil {
			return nil, err
		}
		return DeleteDocument{DocID: id}, nil
	case KindModify:
		return parseModify(p, payload)
	default:
		return nil, invalid(path+".actionType", "unknown action type %q", kind)
	}
}

func parseCreate(path string, raw json.RawMessage) (Action, error) {
	f, err := object(path, raw,
		[]string{"docTitle", "docSummary", "docType", "docContent"},
		[]string{"docTags", "docMetadata"})
	if err != nil {
		return nil, err
	}

	var c CreateDocument
	if c.Title, err = nonEmpty(path+".docTitle", f["docTitle"]); err != nil {
		return nil, err
	}
	if c.Summary, err = str(path+".docSummary", f["docSummary"]); err != nil {
		return nil, err
	}
	docType, err := str(path+".docType", f["docType"])
	if err != nil {
		return nil, err
	}
	c.DocType = model.DocType(docType)
	if !c.DocType.Valid() {
		return nil, invalid(path+".docType", "must be note or list, got %q", docType)
	}

	if raw, ok := f["docTags"]; ok {
		if c.Tags, err = strList(path+".docTags", raw); err != nil {
			return nil, err
		}
		if len(c.Tags) > MaxTags {
			return nil, invalid(path+".docTags", "at most %d tags, got %d", MaxTags, len(c.Tags))
		}
	}

	meta, hasMeta := f["docMetadata"]
	switch c.DocType {
	case model.DocTypeNote:
		if hasMeta {
			return nil, invalid(path+".docMetadata", "not allowed for notes")
		}
		if c.Note, err = str(path+".docContent", f["docContent"]); err != nil {
			return nil, err
		}
	case model.DocTypeList:
		if !hasMeta {
			return nil, invalid(path+".docMetadata", "required for lists")
		}
		if c.ListType, err = listType(path+".docMetadata", meta); err != nil {
			return nil, err
		}
		if c.Items, err = initialItems(path+".docContent", f["docContent"]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func listType(path string, raw json.RawMessage) (model.ListType, error) {
	f, err := object(path, raw, []string{"listType"}, nil)
	if err != nil {
		return "", err
	}
	s, err := str(path+".listType", f["listType"])
	if err != nil {
		return "", err
	}
	lt := model.ListType(s)
	if !lt.Valid() {
		return "", invalid(path+".listType", "must be normal or grocery, got %q", s)
	}
	return lt, nil
}

// initialItems accepts either an array of item texts or a flat string with
// one item per line; blank lines are separators.
func initialItems(path string, raw json.RawMessage) ([]string, error) {
	if isString(raw) {
		s, err := str(path, raw)
		if err != nil {
			return nil, err
		}
		var items []string
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
		return items, nil
	}
	items, err := strList(path, raw)
	if err != nil {
		return nil, err
	}
	for i, it := range items {
		if strings.TrimSpace(it) == "" {
			return nil, invalid(fmt.Sprintf("%s[%d]", path, i), "item content must not be empty")
		}
	}
	return items, nil
}

func parseModify(path string, raw json.RawMessage) (Action, error) {
	f, err := object(path, raw, []string{"docId", "modifications"}, nil)
	if err != nil {
		return nil, err
	}
	docID, err := identifier(path+".docId", f["docId"])
	if err != nil {
		return nil, err
	}
	mods, err := array(path+".modifications", f["modifications"])
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, invalid(path+".modifications", "must contain at least one modification")
	}

	m := ModifyDocument{DocID: docID, Modifications: make([]Modification, 0, len(mods))}
	for i, raw := range mods {
		mod, err := parseModification(fmt.Sprintf("%s.modifications[%d]", path, i), raw)
		if err != nil {
			return nil, err
		}
		m.Modifications = append(m.Modifications, mod)
	}
	return m, nil
}

func parseModification(path string, raw json.RawMessage) (Modification, error) {
	env, err := object(path, raw, []string{"modType", "modPayload"}, nil)
	if err != nil {
		return nil, err
	}
	kind, err := str(path+".modType", env["modType"])
	if err != nil {
		return nil, err
	}
	p := path + ".modPayload"
	payload := env["modPayload"]

	switch ModKind(kind) {
	case ModAddListItem:
		f, err := object(p, payload, []string{"itemContent", "itemCompleted"}, nil)
		if err != nil {
			return nil, err
		}
		var m AddListItem
		if m.Content, err = nonEmpty(p+".itemContent", f["itemContent"]); err != nil {
			return nil, err
		}
		if m.Completed, err = boolean(p+".itemCompleted", f["itemCompleted"]); err != nil {
			return nil, err
		}
		return m, nil
	case ModEditListItem:
		f, err := object(p, payload, []string{"itemId", "itemContent", "itemCompleted"}, nil)
		if err != nil {
			return nil, err
		}
		var m EditListItem
		if m.ItemID, err = identifier(p+".itemId", f["itemId"]); err != nil {
			return nil, err
		}
		if m.Content, err = nonEmpty(p+".itemContent", f["itemContent"]); err != nil {
			return nil, err
		}
		if m.Completed, err = boolean(p+".itemCompleted", f["itemCompleted"]); err != nil {
			return nil, err
		}
		return m, nil
	case ModDeleteListItem:
		f, err := object(p, payload, []string{"itemId"}, nil)
		if err != nil {
			return nil, err
		}
		id, err := identifier(p+".itemId", f["itemId"])
		if err != nil {
			return nil, err
		}
		return DeleteListItem{ItemID: id}, nil
	case ModEditNote:
		f, err := object(p, payload, []string{"docContent"}, nil)
		if err != nil {
			return nil, err
		}
		content, err := str(p+".docContent", f["docContent"])
		if err != nil {
			return nil, err
		}
		return EditNote{Content: content}, nil
	default:
		return nil, invalid(path+".modType", "unknown modification type %q", kind)
	}
}

func docIDPayload(path string, raw json.RawMessage) (string, error) {
	f, err := object(path, raw, []string{"docId"}, nil)
	if err != nil {
		return "", err
	}
	return identifier(path+".docId", f["docId"])
}

// object decodes a JSON object and enforces its field set. A null optional
// field counts as absent; a null required field counts as missing.
func object(path string, raw json.RawMessage, required, optional []string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, invalid(path, "must be an object")
	}
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}
	for k, v := range fields {
		if !allowed[k] {
			return nil, invalid(path+"."+k, "unknown field")
		}
		if isNull(v) {
			delete(fields, k)
		}
	}
	for _, k := range required {
		if _, ok := fields[k]; !ok {
			return nil, invalid(path+"."+k, "required field is missing")
		}
	}
	return fields, nil
}

func array(path string, raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || !isArray(raw) {
		return nil, invalid(path, "must be an array")
	}
	return items, nil
}

func str(path string, raw json.RawMessage) (string, error) {
	var s string
	if !isString(raw) || json.Unmarshal(raw, &s) != nil {
		return "", invalid(path, "must be a string")
	}
	return s, nil
}

func nonEmpty(path string, raw json.RawMessage) (string, error) {
	s, err := str(path, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalid(path, "must not be empty")
	}
	return s, nil
}

func boolean(path string, raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, invalid(path, "must be a boolean")
	}
	return b, nil
}

func strList(path string, raw json.RawMessage) ([]string, error) {
	items, err := array(path, raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		s, err := str(fmt.Sprintf("%s[%d]", path, i), it)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// identifier accepts only canonical UUIDs, the id format of documents and items.
func identifier(path string, raw json.RawMessage) (string, error) {
	s, err := str(path, raw)
	if err != nil {
		return "", err
	}
	if !ValidID(s) {
		return "", invalid(path, "%q is not a valid identifier", s)
	}
	return s, nil
}

// ValidID reports whether s is a canonical hyphenated UUID.
func ValidID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isString(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '"'
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}
