package action

import (
	"encoding/json"
	"errors"
	"testing"

	"pocketmemory/internal/document/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	listID = "0f8b7c7e-3c1a-4b4e-9a53-0d5c2c1d7e11"
	itemID = "6a1f0e2d-8b9c-4d3e-a2f1-5c6b7a8d9e0f"
)

func TestParseSimpleAdd(t *testing.T) {
	raw := `{"actions":[{"actionType":"modifyDocument","actionPayload":{"docId":"` + listID + `",
		"modifications":[{"modType":"addListItem","modPayload":{"itemContent":"milk","itemCompleted":false}}]}}]}`

	batch, err := Parse([]byte(raw))
	require.NoError(t, err)

	want := &Batch{Actions: []Action{
		ModifyDocument{DocID: listID, Modifications: []Modification{AddListItem{Content: "milk"}}},
	}}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyBatch(t *testing.T) {
	batch, err := Parse([]byte(`{"actions":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
}

func TestParseCreateVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want CreateDocument
	}{
		{
			name: "note",
			raw:  `{"docTitle":"Donuts","docSummary":"Donut ideas.","docType":"note","docContent":"glazed","docTags":["food"]}`,
			want: CreateDocument{Title: "Donuts", Summary: "Donut ideas.", DocType: model.DocTypeNote, Tags: []string{"food"}, Note: "glazed"},
		},
		{
			name: "list from array",
			raw:  `{"docTitle":"Packing","docSummary":"Trip.","docType":"list","docTags":[],"docContent":["socks","passport"],"docMetadata":{"listType":"normal"}}`,
			want: CreateDocument{Title: "Packing", Summary: "Trip.", DocType: model.DocTypeList, Tags: []string{},
				ListType: model.ListTypeNormal, Items: []string{"socks", "passport"}},
		},
		{
			name: "list from lines",
			raw:  `{"docTitle":"Shop","docSummary":"","docType":"list","docContent":"milk\n\n eggs \n","docMetadata":{"listType":"grocery"}}`,
			want: CreateDocument{Title: "Shop", DocType: model.DocTypeList, ListType: model.ListTypeGrocery, Items: []string{"milk", "eggs"}},
		},
		{
			name: "null tags are absent",
			raw:  `{"docTitle":"Idea","docSummary":"s","docType":"note","docContent":"","docTags":null}`,
			want: CreateDocument{Title: "Idea", Summary: "s", DocType: model.DocTypeNote},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Parse([]byte(`{"actions":[{"actionType":"createDocument","actionPayload":` + tt.raw + `}]}`))
			require.NoError(t, err)
			require.Equal(t, 1, batch.Len())
			if diff := cmp.Diff(tt.want, batch.Actions[0]); diff != "" {
				t.Errorf("create mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	modify := func(mods string) string {
		return `{"actions":[{"actionType":"modifyDocument","actionPayload":{"docId":"` + listID + `","modifications":` + mods + `}}]}`
	}
	create := func(payload string) string {
		return `{"actions":[{"actionType":"createDocument","actionPayload":` + payload + `}]}`
	}

	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"not an object", `[]`, "$"},
		{"missing actions", `{}`, "$.actions"},
		{"unknown top-level field", `{"actions":[],"reason":"x"}`, "$.reason"},
		{"actions not array", `{"actions":{}}`, "$.actions"},
		{"unknown action type", `{"actions":[{"actionType":"renameDocument","actionPayload":{}}]}`, "$.actions[0].actionType"},
		{"missing title", create(`{"docSummary":"s","docType":"note","docContent":""}`), "$.actions[0].actionPayload.docTitle"},
		{"blank title", create(`{"docTitle":"  ","docSummary":"s","docType":"note","docContent":""}`), "$.actions[0].actionPayload.docTitle"},
		{"bad doc type", create(`{"docTitle":"t","docSummary":"s","docType":"task","docContent":""}`), "$.actions[0].actionPayload.docType"},
		{"too many tags", create(`{"docTitle":"t","docSummary":"s","docType":"note","docContent":"","docTags":["a","b","c","d"]}`), "$.actions[0].actionPayload.docTags"},
		{"note with metadata", create(`{"docTitle":"t","docSummary":"s","docType":"note","docContent":"","docMetadata":{"listType":"normal"}}`), "$.actions[0].actionPayload.docMetadata"},
		{"list without metadata", create(`{"docTitle":"t","docSummary":"s","docType":"list","docContent":[]}`), "$.actions[0].actionPayload.docMetadata"},
		{"bad list type", create(`{"docTitle":"t","docSummary":"s","docType":"list","docContent":[],"docMetadata":{"listType":"todo"}}`), "$.actions[0].actionPayload.docMetadata.listType"},
		{"empty initial item", create(`{"docTitle":"t","docSummary":"s","docType":"list","docContent":["a",""],"docMetadata":{"listType":"normal"}}`), "$.actions[0].actionPayload.docContent[1]"},
		{"unknown create field", create(`{"docTitle":"t","docSummary":"s","docType":"note","docContent":"","color":"red"}`), "$.actions[0].actionPayload.color"},
		{"open bad id", `{"actions":[{"actionType":"openDocument","actionPayload":{"docId":"my-list"}}]}`, "$.actions[0].actionPayload.docId"},
		{"delete missing id", `{"actions":[{"actionType":"deleteDocument","actionPayload":{}}]}`, "$.actions[0].actionPayload.docId"},
		{"empty modifications", modify(`[]`), "$.actions[0].actionPayload.modifications"},
		{"unknown mod type", modify(`[{"modType":"moveListItem","modPayload":{}}]`), "$.actions[0].actionPayload.modifications[0].modType"},
		{"add empty content", modify(`[{"modType":"addListItem","modPayload":{"itemContent":"","itemCompleted":false}}]`), "$.actions[0].actionPayload.modifications[0].modPayload.itemContent"},
		{"add missing completed", modify(`[{"modType":"addListItem","modPayload":{"itemContent":"milk"}}]`), "$.actions[0].actionPayload.modifications[0].modPayload.itemCompleted"},
		{"edit bad item id", modify(`[{"modType":"editListItem","modPayload":{"itemId":"1","itemContent":"x","itemCompleted":true}}]`), "$.actions[0].actionPayload.modifications[0].modPayload.itemId"},
		{"delete item extra field", modify(`[{"modType":"deleteListItem","modPayload":{"itemId":"` + itemID + `","why":"dup"}}]`), "$.actions[0].actionPayload.modifications[0].modPayload.why"},
		{"edit note not string", modify(`[{"modType":"editNote","modPayload":{"docContent":42}}]`), "$.actions[0].actionPayload.modifications[0].modPayload.docContent"},
		{"second mod invalid", modify(`[{"modType":"deleteListItem","modPayload":{"itemId":"` + itemID + `"}},{"modType":"editNote","modPayload":{}}]`), "$.actions[0].actionPayload.modifications[1].modPayload.docContent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.True(t, errors.Is(err, ErrInvalid))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestParseRejectsWholeBatchOnOneBadAction(t *testing.T) {
	raw := `{"actions":[
		{"actionType":"openDocument","actionPayload":{"docId":"` + listID + `"}},
		{"actionType":"modifyDocument","actionPayload":{"docId":"` + listID + `","modifications":[]}}]}`
	batch, err := Parse([]byte(raw))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Nil(t, batch)
}

func TestBatchEncodesToParsableWireFormat(t *testing.T) {
	in := &Batch{Actions: []Action{
		CreateDocument{Title: "Packing", Summary: "Trip.", DocType: model.DocTypeList, ListType: model.ListTypeNormal, Items: []string{"socks"}},
		CreateDocument{Title: "Donuts", Summary: "Ideas.", DocType: model.DocTypeNote, Note: "glazed", Tags: []string{"food"}},
		OpenDocument{DocID: listID},
		DeleteDocument{DocID: listID},
		ModifyDocument{DocID: listID, Modifications: []Modification{
			AddListItem{Content: "milk"},
			EditListItem{ItemID: itemID, Content: "oat milk", Completed: true},
			DeleteListItem{ItemID: itemID},
			EditNote{Content: ""},
		}},
	}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"actionType":"createDocument"`)
	assert.Contains(t, string(raw), `"docMetadata":{"listType":"normal"}`)

	out, err := Parse(raw)
	require.NoError(t, err)

	// Tags come back as an empty slice once written.
	in.Actions[0] = CreateDocument{Title: "Packing", Summary: "Trip.", DocType: model.DocTypeList, ListType: model.ListTypeNormal,
		Items: []string{"socks"}, Tags: []string{}}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(listID))
	assert.False(t, ValidID("{"+listID+"}"))
	assert.False(t, ValidID("0f8b7c7e3c1a4b4e9a530d5c2c1d7e11"))
	assert.False(t, ValidID(""))
}

func TestParseCreatePayload(t *testing.T) {
	c, err := ParseCreate([]byte(`{"docTitle":"Trip","docSummary":"","docType":"list",
		"docMetadata":{"listType":"normal"},"docContent":"socks\n\n charger "}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"socks", "charger"}, c.Items)
	assert.Equal(t, model.ListTypeNormal, c.ListType)

	_, err = ParseCreate([]byte(`{"docSummary":"","docType":"note","docContent":""}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "$.docTitle", verr.Path)
}
