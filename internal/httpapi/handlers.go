// Package httpapi exposes the engine over HTTP. The caller's identity
// arrives in the X-User-ID header; authentication itself is handled
// upstream and is out of scope here.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ikaikahussey/stufff-app/internal/ai"
	"github.com/ikaikahussey/stufff-app/internal/engine"
	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/store"
)

// Handler contains the HTTP request handlers.
type Handler struct {
	engine    *engine.Engine
	generator ai.DescriptionGenerator // nil when no API key is configured
	images    store.ImageStore        // nil disables image uploads
}

// NewHandler creates the HTTP handler set.
func NewHandler(eng *engine.Engine, generator ai.DescriptionGenerator, images store.ImageStore) *Handler {
	return &Handler{engine: eng, generator: generator, images: images}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.PostItem).Methods("POST")
	api.HandleFunc("/items/search", h.SearchItems).Methods("GET")
	api.HandleFunc("/items/draft", h.DraftItem).Methods("POST")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}/interest", h.ExpressInterest).Methods("POST")
	api.HandleFunc("/items/{id}/interest", h.RemoveInterest).Methods("DELETE")
	api.HandleFunc("/items/{id}/messages", h.GetMessages).Methods("GET")
	api.HandleFunc("/items/{id}/messages", h.SendMessage).Methods("POST")
	api.HandleFunc("/items/{id}/meetup", h.ProposeMeetup).Methods("POST")
	api.HandleFunc("/items/{id}/meetup/{msgID}/status", h.RespondToMeetup).Methods("POST")
	api.HandleFunc("/mystuff", h.MyStuff).Methods("GET")
	api.HandleFunc("/profiles/{id}", h.GetProfile).Methods("GET")
	api.HandleFunc("/profiles/{id}", h.SaveProfile).Methods("PUT")

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "stufffd",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ListItems returns the active catalog, newest first.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Items())
}

// SearchItems filters the catalog by ?q=.
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Search(r.URL.Query().Get("q")))
}

// GetItem returns one item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.engine.GetItem(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

type postItemRequest struct {
	models.ItemDraft
	SellerName  string `json:"seller_name"`
	ImageBase64 string `json:"image_base64"`
}

// PostItem creates a listing owned by the acting user. An attached
// image is uploaded first; an upload failure keeps the draft's own
// image reference rather than failing the post.
func (h *Handler) PostItem(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req postItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.images != nil && req.ImageBase64 != "" {
		if data, err := decodeImage(req.ImageBase64); err == nil {
			if url, err := h.images.Upload(r.Context(), data, userID); err == nil {
				req.ItemDraft.ImageURL = url
			}
		}
	}

	item, err := h.engine.AddItem(r.Context(), req.ItemDraft, models.SellerRef{ID: userID, Name: req.SellerName})
	if errors.Is(err, engine.ErrValidation) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to post item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type draftRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// DraftItem asks the description generator for a starting point. A
// generator failure returns an empty draft: the post flow falls back
// to blank fields rather than failing.
func (h *Handler) DraftItem(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		respondJSON(w, http.StatusOK, ai.Draft{})
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	data, err := decodeImage(req.ImageBase64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	draft, err := h.generator.Generate(r.Context(), data, req.MimeType)
	if err != nil {
		respondJSON(w, http.StatusOK, ai.Draft{})
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

// ExpressInterest marks the item for the acting user. Repeating the
// call reports success again.
func (h *Handler) ExpressInterest(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	item, err := h.engine.GetItem(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}

	interested, err := h.engine.ExpressInterest(r.Context(), item, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to express interest")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"interested": interested})
}

// RemoveInterest unmarks the item; absent interest is a no-op.
func (h *Handler) RemoveInterest(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	if err := h.engine.RemoveInterest(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to remove interest")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"interested": false})
}

// MyStuff lists the acting user's interested items.
func (h *Handler) MyStuff(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	items, err := h.engine.MyStuff(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load interests")
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

// GetMessages returns the thread; ?grouped=1 returns day sections, and
// the response carries the derived meetup status and unread count.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	itemID := mux.Vars(r)["id"]

	if r.URL.Query().Get("grouped") != "" {
		groups, err := h.engine.GroupedMessages(r.Context(), itemID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to load messages")
			return
		}
		respondJSON(w, http.StatusOK, groups)
		return
	}

	msgs, err := h.engine.Messages(r.Context(), itemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	status, err := h.engine.MeetupStatus(r.Context(), itemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	unread, err := h.engine.UnreadCount(r.Context(), itemID, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages":      msgs,
		"meetup_status": status,
		"unread":        unread,
	})
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
}

// SendMessage appends a message authored by the acting user.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.engine.SendMessage(r.Context(), mux.Vars(r)["id"], userID, req.ReceiverID, req.Body)
	if errors.Is(err, engine.ErrValidation) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

type proposeMeetupRequest struct {
	ReceiverID string `json:"receiver_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Location   string `json:"location"`
}

// ProposeMeetup appends a meetup proposal to the thread.
func (h *Handler) ProposeMeetup(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req proposeMeetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.engine.ProposeMeetup(r.Context(), mux.Vars(r)["id"], userID, req.ReceiverID, req.Date, req.Time, req.Location)
	if errors.Is(err, engine.ErrValidation) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to propose meetup")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

type respondMeetupRequest struct {
	Status string `json:"status"`
}

// RespondToMeetup transitions a pending proposal.
func (h *Handler) RespondToMeetup(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == "" {
		return
	}
	vars := mux.Vars(r)

	var req respondMeetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.engine.RespondToMeetup(r.Context(), vars["id"], vars["msgID"], req.Status)
	if errors.Is(err, engine.ErrValidation) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Proposal not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update meetup")
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// GetProfile returns a user profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Profile(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SaveProfile upserts the acting user's profile.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if userID != mux.Vars(r)["id"] {
		respondError(w, http.StatusForbidden, "Cannot edit another user's profile")
		return
	}

	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p.ID = userID

	saved, err := h.engine.SaveProfile(r.Context(), p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "X-User-ID header is required")
	}
	return userID
}
