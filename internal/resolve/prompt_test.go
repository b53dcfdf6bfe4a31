package resolve

import (
	"testing"

	"pocketmemory/internal/document/model"

	"github.com/stretchr/testify/assert"
)

func TestIndexLine(t *testing.T) {
	tests := []struct {
		name  string
		entry model.IndexEntry
		want  string
	}{
		{
			name:  "grocery list with tags",
			entry: model.IndexEntry{ID: "id-1", Title: "Groceries", Summary: "weekly shop", Type: model.DocTypeList, ListType: model.ListTypeGrocery, Tags: []string{"food", "home"}},
			want:  "- [id-1] Groceries: weekly shop (list - grocery) [food, home]",
		},
		{
			name:  "plain note",
			entry: model.IndexEntry{ID: "id-2", Title: "Ideas", Summary: "", Type: model.DocTypeNote},
			want:  "- [id-2] Ideas:  (note)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexLine(tt.entry))
		})
	}
}

func TestSystemPromptListsIndexWithoutContent(t *testing.T) {
	p := SystemPrompt([]model.IndexEntry{{ID: "id-1", Title: "Groceries", Type: model.DocTypeList}})
	assert.Contains(t, p, GetDocumentTool)
	assert.Contains(t, p, "- [id-1] Groceries")

	assert.Contains(t, AnswerPrompt(nil), "(none)")
}
