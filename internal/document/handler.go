package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pocketmemory/internal/action"
	"pocketmemory/internal/document/model"
	"pocketmemory/internal/document/service"
	"pocketmemory/middleware"
	"pocketmemory/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// user extracts the authenticated user or answers 401.
func user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, action.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrDocumentNotFound):
		http.Error(w, "Document not found", http.StatusNotFound)
	default:
		logger.Sugar.Errorf("Handler: %s failed: %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}

	docs, err := h.Service.GetDocuments(r.Context(), userID)
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}
	writeJSON(w, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.GetDocument(r.Context(), userID, docID)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req, err := action.ParseCreate(body)
	if err != nil {
		writeError(w, "create document", err)
		return
	}

	docID, err := h.Service.CreateDocument(r.Context(), userID, req)
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(model.CreateDocResponse{DocID: docID})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodDelete) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteDocument(r.Context(), userID, docID); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document deleted successfully"))
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	var req model.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateTitle(r.Context(), userID, docID, req.Title); err != nil {
		writeError(w, "rename document", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document updated successfully"))
}

func (h *DocumentHandler) PinDocument(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	var req model.PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.SetPinned(r.Context(), userID, docID, req.Pinned); err != nil {
		writeError(w, "pin document", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document updated successfully"))
}

func (h *DocumentHandler) SaveNote(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	userID, ok := user(w, r)
	if !ok {
		return
	}

	var req model.NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.SaveNote(r.Context(), userID, req)
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	writeJSON(w, doc)
}

type itemFunc func(ctx context.Context, userID string, req model.ItemRequest) (*model.Document, error)

// itemOp adapts one of the service's item edits to an HTTP endpoint.
func itemOp(method, op string, fn itemFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, method) {
			return
		}
		userID, ok := user(w, r)
		if !ok {
			return
		}

		var req model.ItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		doc, err := fn(r.Context(), userID, req)
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSON(w, doc)
	}
}

func (h *DocumentHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	itemOp(http.MethodPost, "add item", h.Service.AddItem)(w, r)
}

func (h *DocumentHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	itemOp(http.MethodPut, "edit item", h.Service.EditItem)(w, r)
}

func (h *DocumentHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	itemOp(http.MethodPut, "toggle item", h.Service.ToggleItem)(w, r)
}

func (h *DocumentHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemOp(http.MethodDelete, "delete item", h.Service.DeleteItem)(w, r)
}

func (h *DocumentHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	itemOp(http.MethodPut, "set item quantity", h.Service.SetItemQuantity)(w, r)
}
