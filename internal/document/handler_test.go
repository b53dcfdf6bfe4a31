package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocketmemory/internal/document/model"
	"pocketmemory/internal/document/repository"
	"pocketmemory/internal/document/service"
	"pocketmemory/internal/mutation"
	"pocketmemory/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID = "user-1"
	listID = "0f8b7c7e-3c1a-4b4e-9a53-0d5c2c1d7e11"
)

type nopHub struct{}

func (nopHub) Publish(string, string, string, any) {}

func newTestHandler(t *testing.T) (*DocumentHandler, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Create(context.Background(), &model.Document{
		ID: listID, OwnerID: userID, Title: "Groceries", Type: model.DocTypeList,
		Metadata: model.Metadata{ListType: model.ListTypeGrocery},
	}))
	svc := service.NewDocumentService(repo, mutation.NewEngine(repo, nil), nopHub{})
	return NewDocumentHandler(svc), repo
}

func stored(t *testing.T, repo *repository.MemoryRepository, docID string) *model.Document {
	t.Helper()
	doc, err := repo.Get(context.Background(), userID, docID)
	require.NoError(t, err)
	return doc
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetDocuments(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h.GetDocuments, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, listID, docs[0]["docId"])
	assert.Equal(t, "Groceries", docs[0]["docTitle"])

	rec = do(h.GetDocuments, http.MethodPost, "/api/documents", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.GetDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDocument(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h.GetDocument, http.MethodGet, "/api/documents/get?docId="+listID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"docContent":[]`)

	rec = do(h.GetDocument, http.MethodGet, "/api/documents/get?docId=1b2c3d4e-5f60-4718-9a0b-1c2d3e4f5061", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h.GetDocument, http.MethodGet, "/api/documents/get", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDocument(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := do(h.CreateDocument, http.MethodPost, "/api/documents/create",
		`{"docTitle":"Recipe","docSummary":"pancakes","docType":"note","docContent":"flour, milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp model.CreateDocResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "flour, milk", stored(t, repo, resp.DocID).Note)

	rec = do(h.CreateDocument, http.MethodPost, "/api/documents/create",
		`{"docSummary":"","docType":"note","docContent":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "docTitle")
}

func TestItemEndpoints(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := do(h.AddItem, http.MethodPost, "/api/documents/items/add", `{"docId":"`+listID+`","itemContent":"milk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stored(t, repo, listID).Items, 1)
	itemID := stored(t, repo, listID).Items[0].ID

	rec = do(h.ToggleItem, http.MethodPut, "/api/documents/items/toggle", `{"docId":"`+listID+`","itemId":"`+itemID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, stored(t, repo, listID).Items[0].Completed)

	rec = do(h.DeleteItem, http.MethodDelete, "/api/documents/items/delete", `{"docId":"`+listID+`","itemId":"`+itemID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stored(t, repo, listID).Items)

	rec = do(h.EditItem, http.MethodPost, "/api/documents/items/update", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(h.AddItem, http.MethodPost, "/api/documents/items/add", `{"docId":"`+listID+`","itemContent":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingShowsContent(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h.AddItem, http.MethodPost, "/api/documents/items/add", `{"docId":"`+listID+`","itemContent":"milk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h.AddItem, http.MethodPost, "/api/documents/items/add", `{"docId":"`+listID+`","itemContent":"eggs"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h.CreateDocument, http.MethodPost, "/api/documents/create",
		`{"docTitle":"Diary","docSummary":"","docType":"note","docContent":"hello world"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h.GetDocuments, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []struct {
		Title   string          `json:"docTitle"`
		Content json.RawMessage `json:"docContent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 2)

	content := map[string]string{}
	for _, d := range docs {
		content[d.Title] = string(d.Content)
	}
	assert.Equal(t, `"hello world"`, content["Diary"])
	assert.Contains(t, content["Groceries"], `"content":"milk"`)
	assert.Contains(t, content["Groceries"], `"content":"eggs"`)
}

func TestSetItemQuantity(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := do(h.AddItem, http.MethodPost, "/api/documents/items/add", `{"docId":"`+listID+`","itemContent":"flour"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	itemID := stored(t, repo, listID).Items[0].ID

	rec = do(h.SetItemQuantity, http.MethodPut, "/api/documents/items/quantity",
		`{"docId":"`+listID+`","itemId":"`+itemID+`","itemQuantity":"500 g"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "500 g", stored(t, repo, listID).Items[0].Quantity)
	assert.Contains(t, rec.Body.String(), `"quantity":"500 g"`)

	rec = do(h.SetItemQuantity, http.MethodPost, "/api/documents/items/quantity", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNoteOnListIsBadRequest(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h.SaveNote, http.MethodPut, "/api/documents/note", `{"docId":"`+listID+`","docContent":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenamePinDelete(t *testing.T) {
	h, repo := newTestHandler(t)

	rec := do(h.UpdateDocument, http.MethodPut, "/api/documents/update?docId="+listID, `{"docTitle":"Shop"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Shop", stored(t, repo, listID).Title)

	rec = do(h.UpdateDocument, http.MethodPut, "/api/documents/update?docId="+listID, `{"docTitle":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.PinDocument, http.MethodPut, "/api/documents/pin?docId="+listID, `{"isPinned":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, stored(t, repo, listID).Pinned)

	rec = do(h.DeleteDocument, http.MethodDelete, "/api/documents/delete?docId="+listID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := repo.Get(context.Background(), userID, listID)
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)

	rec = do(h.DeleteDocument, http.MethodDelete, "/api/documents/delete?docId="+listID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
