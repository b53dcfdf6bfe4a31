package gemini

import (
	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"

	"google.golang.org/genai"
)

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func enum(values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values}
}

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

// batchSchema describes {"actions":[...]} for structured output. It guides
// the model; action.Parse remains the authority on validity.
func batchSchema() *genai.Schema {
	boolean := &genai.Schema{Type: genai.TypeBoolean}

	item := object(map[string]*genai.Schema{
		"itemContent":   str("Text of the list item."),
		"itemCompleted": boolean,
	}, "itemContent", "itemCompleted")
	editItem := object(map[string]*genai.Schema{
		"itemId":        str("Existing item id from retrieved content."),
		"itemContent":   str("Replacement text of the item."),
		"itemCompleted": boolean,
	}, "itemId", "itemContent", "itemCompleted")
	deleteItem := object(map[string]*genai.Schema{"itemId": str("Existing item id.")}, "itemId")
	editNote := object(map[string]*genai.Schema{"docContent": str("Full replacement body of the note.")}, "docContent")

	modification := object(map[string]*genai.Schema{
		"modType": enum(
			string(action.ModAddListItem),
			string(action.ModEditListItem),
			string(action.ModDeleteListItem),
			string(action.ModEditNote),
		),
		"modPayload": {AnyOf: []*genai.Schema{item, editItem, deleteItem, editNote}},
	}, "modType", "modPayload")

	create := object(map[string]*genai.Schema{
		"docTitle":   str("Short title."),
		"docSummary": str("One sentence summary."),
		"docType":    enum(string(model.DocTypeNote), string(model.DocTypeList)),
		"docTags": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			MaxItems: genai.Ptr[int64](action.MaxTags),
		},
		"docMetadata": object(map[string]*genai.Schema{
			"listType": enum(string(model.ListTypeNormal), string(model.ListTypeGrocery)),
		}, "listType"),
		"docContent": {AnyOf: []*genai.Schema{
			str("Note body, or newline separated list items."),
			{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		}},
	}, "docTitle", "docSummary", "docType", "docContent")
	target := object(map[string]*genai.Schema{"docId": str("Existing document id.")}, "docId")
	modify := object(map[string]*genai.Schema{
		"docId":         str("Existing document id."),
		"modifications": {Type: genai.TypeArray, Items: modification},
	}, "docId", "modifications")

	act := object(map[string]*genai.Schema{
		"actionType": enum(
			string(action.KindCreate),
			string(action.KindOpen),
			string(action.KindModify),
			string(action.KindDelete),
		),
		"actionPayload": {AnyOf: []*genai.Schema{create, target, modify}},
	}, "actionType", "actionPayload")

	return object(map[string]*genai.Schema{
		"actions": {Type: genai.TypeArray, Items: act},
	}, "actions")
}
