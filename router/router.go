package router

import (
	"net/http"

	"pocketmemory/internal/capture"
	docHandler "pocketmemory/internal/document"
	"pocketmemory/internal/document/service"
	"pocketmemory/middleware"
	"pocketmemory/socket"
)

func Setup(docService *service.DocumentService, captureHandler *capture.Handler, hub *socket.Hub, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Auth(jwtSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		socket.ServeWs(hub, w, r, userID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	docHandler := docHandler.NewDocumentHandler(docService)

	mux.Handle("/api/documents", auth(http.HandlerFunc(docHandler.GetDocuments)))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(docHandler.GetDocument)))
	mux.Handle("/api/documents/create", auth(http.HandlerFunc(docHandler.CreateDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(docHandler.DeleteDocument)))
	mux.Handle("/api/documents/update", auth(http.HandlerFunc(docHandler.UpdateDocument)))
	mux.Handle("/api/documents/pin", auth(http.HandlerFunc(docHandler.PinDocument)))
	mux.Handle("/api/documents/note", auth(http.HandlerFunc(docHandler.SaveNote)))
	mux.Handle("/api/documents/items/add", auth(http.HandlerFunc(docHandler.AddItem)))
	mux.Handle("/api/documents/items/update", auth(http.HandlerFunc(docHandler.EditItem)))
	mux.Handle("/api/documents/items/toggle", auth(http.HandlerFunc(docHandler.ToggleItem)))
	mux.Handle("/api/documents/items/delete", auth(http.HandlerFunc(docHandler.DeleteItem)))
	mux.Handle("/api/documents/items/quantity", auth(http.HandlerFunc(docHandler.SetItemQuantity)))

	// Natural-language capture
	mux.Handle("/api/query", auth(http.HandlerFunc(captureHandler.Query)))
	mux.Handle("/api/ask", auth(http.HandlerFunc(captureHandler.Ask)))

	return middleware.CORSMiddleware(mux)
}
