package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/ikaikahussey/stufff-app/internal/engine"
	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
	"github.com/ikaikahussey/stufff-app/internal/store"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	seed := []models.Item{
		{
			ID: "42", Title: "Vintage Bike", Description: "Great commuter",
			Category: models.CategoryOther, Location: "Kaimuki",
			Seller: models.SellerRef{ID: "seller-1", Name: "Kai"}, Price: 80,
			CreatedAt: time.Now().Add(-time.Hour),
		},
	}
	st, err := store.NewLocalStore(t.TempDir(), seed)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	eng, err := engine.New(context.Background(), engine.Options{Store: st, Broker: broker})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	images, err := store.NewFileImageStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewFileImageStore: %v", err)
	}
	return NewHandler(eng, nil, images).SetupRoutes()
}

func doJSON(t *testing.T, router *mux.Router, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("got status %q, want healthy", body["status"])
	}
}

func TestListAndSearchItems(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/items", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got status %d, want 200", rec.Code)
	}
	var items []models.Item
	decodeBody(t, rec, &items)
	if len(items) != 1 || items[0].ID != "42" {
		t.Fatalf("got %d items, want the seeded catalog", len(items))
	}

	rec = doJSON(t, router, "GET", "/api/v1/items/search?q=bike", "", nil)
	decodeBody(t, rec, &items)
	if len(items) != 1 {
		t.Errorf("search bike: got %d results, want 1", len(items))
	}

	rec = doJSON(t, router, "GET", "/api/v1/items/search?q=spaceship", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("empty search: got status %d, want 200", rec.Code)
	}
}

func TestGetItem(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/items/42", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/api/v1/items/unknown", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown item: got status %d, want 404", rec.Code)
	}
}

func TestPostItem(t *testing.T) {
	router := newTestRouter(t)
	body := map[string]any{"title": "Couch", "price": 120.0, "seller_name": "Kai"}

	rec := doJSON(t, router, "POST", "/api/v1/items", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous post: got status %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items", "seller-1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var item models.Item
	decodeBody(t, rec, &item)
	if item.ID == "" || item.Seller.ID != "seller-1" || item.Seller.Name != "Kai" {
		t.Errorf("created item missing identity: %+v", item)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items", "seller-1", map[string]any{"title": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank title: got status %d, want 400", rec.Code)
	}
}

func TestPostItemUploadsImage(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/items", "seller-1", map[string]any{
		"title": "Lamp", "price": 10.0,
		"image_base64": "data:image/jpeg;base64,aGVsbG8=",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var item models.Item
	decodeBody(t, rec, &item)
	if !strings.HasPrefix(item.ImageURL, "/uploads/seller-1/") {
		t.Errorf("image_url = %q, want an uploaded path", item.ImageURL)
	}
}

func TestDraftItemWithoutGenerator(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/items/draft", "seller-1", map[string]any{
		"image_base64": "aGVsbG8=", "mime_type": "image/jpeg",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var draft map[string]any
	decodeBody(t, rec, &draft)
	if draft["title"] != "" {
		t.Errorf("got draft title %v, want empty fallback", draft["title"])
	}
}

func TestInterestFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/items/42/interest", "buyer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]bool
	decodeBody(t, rec, &resp)
	if !resp["interested"] {
		t.Error("interested = false after POST")
	}

	// Repeating the call still reports success.
	rec = doJSON(t, router, "POST", "/api/v1/items/42/interest", "buyer-1", nil)
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || !resp["interested"] {
		t.Errorf("repeat POST: status %d interested %v", rec.Code, resp["interested"])
	}

	rec = doJSON(t, router, "GET", "/api/v1/mystuff", "buyer-1", nil)
	var items []models.Item
	decodeBody(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("mystuff has %d items, want 1", len(items))
	}

	rec = doJSON(t, router, "DELETE", "/api/v1/items/42/interest", "buyer-1", nil)
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp["interested"] {
		t.Errorf("DELETE: status %d interested %v", rec.Code, resp["interested"])
	}

	rec = doJSON(t, router, "GET", "/api/v1/mystuff", "buyer-1", nil)
	decodeBody(t, rec, &items)
	if len(items) != 0 {
		t.Errorf("mystuff has %d items after removal, want 0", len(items))
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/unknown/interest", "buyer-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown item: got status %d, want 404", rec.Code)
	}
}

func TestMessageFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/items/42/messages", "buyer-1", map[string]string{
		"receiver_id": "seller-1", "body": "Is this available?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var msg models.Message
	decodeBody(t, rec, &msg)
	if msg.SenderID != "buyer-1" || msg.ReceiverID != "seller-1" {
		t.Errorf("message parties wrong: %+v", msg)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/42/messages", "buyer-1", map[string]string{
		"receiver_id": "seller-1", "body": "  ",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank body: got status %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/api/v1/items/42/messages", "seller-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get messages: got status %d, want 200", rec.Code)
	}
	var thread struct {
		Messages     []models.Message `json:"messages"`
		MeetupStatus string           `json:"meetup_status"`
		Unread       int              `json:"unread"`
	}
	decodeBody(t, rec, &thread)
	if len(thread.Messages) != 1 {
		t.Fatalf("thread has %d messages, want 1", len(thread.Messages))
	}
	if thread.MeetupStatus != "" {
		t.Errorf("meetup status %q, want empty", thread.MeetupStatus)
	}
	if thread.Unread != 1 {
		t.Errorf("receiver unread = %d, want 1", thread.Unread)
	}

	rec = doJSON(t, router, "GET", "/api/v1/items/42/messages?grouped=1", "seller-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grouped: got status %d, want 200", rec.Code)
	}
	var groups []map[string]any
	decodeBody(t, rec, &groups)
	if len(groups) != 1 || groups[0]["label"] != "Today" {
		t.Errorf("got groups %+v, want one Today section", groups)
	}
}

func TestMeetupFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/items/42/meetup", "buyer-1", map[string]string{
		"receiver_id": "seller-1", "date": "2025-06-05", "time": "14:00", "location": "Ala Moana Park",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose: got status %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var proposal models.Message
	decodeBody(t, rec, &proposal)
	if !proposal.IsMeetupProposal || proposal.Meetup == nil || proposal.Meetup.Status != models.MeetupPending {
		t.Fatalf("proposal not pending: %+v", proposal)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/42/meetup", "buyer-1", map[string]string{
		"receiver_id": "seller-1", "time": "14:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing date: got status %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/42/meetup/"+proposal.ID+"/status", "seller-1", map[string]string{
		"status": models.MeetupConfirmed,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var updated models.Message
	decodeBody(t, rec, &updated)
	if updated.Meetup.Status != models.MeetupConfirmed {
		t.Errorf("status %q, want confirmed", updated.Meetup.Status)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/42/meetup/"+proposal.ID+"/status", "seller-1", map[string]string{
		"status": "maybe",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, "POST", "/api/v1/items/42/meetup/unknown/status", "seller-1", map[string]string{
		"status": models.MeetupDeclined,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown proposal: got %d, want 404", rec.Code)
	}
}

func TestProfileEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/profiles/buyer-1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing profile: got status %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, "PUT", "/api/v1/profiles/buyer-1", "someone-else", map[string]string{"name": "Mallory"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign edit: got status %d, want 403", rec.Code)
	}

	rec = doJSON(t, router, "PUT", "/api/v1/profiles/buyer-1", "buyer-1", map[string]string{
		"name": "Kai", "phone": "+18085551234",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var p models.Profile
	decodeBody(t, rec, &p)
	if p.ID != "buyer-1" || p.Name != "Kai" {
		t.Errorf("saved profile %+v", p)
	}

	rec = doJSON(t, router, "GET", "/api/v1/profiles/buyer-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: got status %d, want 200", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/items", "", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers not set")
	}
}
