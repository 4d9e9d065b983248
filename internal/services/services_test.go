package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
	tu "github.com/desertthunder/listsync/internal/testing"
)

// fakeAPI records requests and serves canned JSON per route.
type fakeAPI struct {
	t   *testing.T
	mux *http.ServeMux

	mu     sync.Mutex
	auth   []string
	bodies map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, mux: http.NewServeMux(), bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.bodies[r.Method+" "+r.URL.Path] = string(data)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeAPI) body(route string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[route]
}

func (f *fakeAPI) reply(pattern string, status int, body string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestNormalizeBaseURL(t *testing.T) {
	tc := []struct{ in, want string }{
		{"", DefaultBaseURL},
		{"http://localhost:3000", "http://localhost:3000/api"},
		{"http://localhost:3000/", "http://localhost:3000/api"},
		{"http://localhost:3000/api", "http://localhost:3000/api"},
		{"https://lists.example.com/api/", "https://lists.example.com/api"},
	}
	for _, tt := range tc {
		if got := NormalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("Without Token", func(t *testing.T) {
			srv := NewListService(Options{})
			if srv.BaseURL() != DefaultBaseURL {
				t.Errorf("expected default base URL, got %s", srv.BaseURL())
			}
			if srv.Authenticated() {
				t.Error("expected service without token to be unauthenticated")
			}
		})

		t.Run("With Token", func(t *testing.T) {
			srv := NewListService(Options{BaseURL: "http://example.com", AccessToken: "tok", RateLimit: 5})
			if !srv.Authenticated() {
				t.Error("expected service with token to be authenticated")
			}
			if srv.BaseURL() != "http://example.com/api" {
				t.Errorf("unexpected base URL %s", srv.BaseURL())
			}
		})
	})

	t.Run("Lists", func(t *testing.T) {
		t.Run("Sends Bearer Token", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/lists", http.StatusOK, `[{"_id":"l1","name":"Weekly","status":"draft"}]`)

			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})
			lists, err := srv.Lists(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(lists) != 1 || lists[0].Key() != "l1" {
				t.Errorf("unexpected lists %+v", lists)
			}
			if api.headers()[0] != "Bearer tok" {
				t.Errorf("expected bearer header, got %q", api.headers()[0])
			}
		})

		t.Run("Requires Token", func(t *testing.T) {
			api, server := newFakeAPI(t)
			srv := NewListService(Options{BaseURL: server.URL})

			_, err := srv.Lists(ctx)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if len(api.headers()) != 0 {
				t.Error("expected no request to be sent")
			}
		})

		t.Run("Create, Rename And Duplicate", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("POST /api/lists", http.StatusCreated, `{"_id":"l1","name":"Weekly","status":"draft"}`)
			api.reply("PATCH /api/lists/l1", http.StatusOK, `{"_id":"l1","name":"Monthly","status":"shared"}`)
			api.reply("POST /api/lists/l1/duplicate", http.StatusCreated, `{"_id":"l2","name":"Monthly (copy)","status":"draft"}`)
			api.reply("DELETE /api/lists/l1", http.StatusOK, `{"message":"deleted"}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			created, err := srv.CreateList(ctx, "Weekly")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if created.Name != "Weekly" {
				t.Errorf("unexpected list %+v", created)
			}
			if got := api.body("POST /api/lists"); got != `{"name":"Weekly"}` {
				t.Errorf("unexpected create body %s", got)
			}

			name, status := "Monthly", models.ListShared
			updated, err := srv.UpdateList(ctx, "l1", models.ListPatch{Name: &name, Status: &status})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Status != models.ListShared {
				t.Errorf("unexpected status %s", updated.Status)
			}
			if got := api.body("PATCH /api/lists/l1"); got != `{"name":"Monthly","status":"shared"}` {
				t.Errorf("unexpected patch body %s", got)
			}

			dup, err := srv.DuplicateList(ctx, "l1")
			if err != nil {
				t.Fatalf("duplicate: %v", err)
			}
			if dup.Key() != "l2" {
				t.Errorf("unexpected duplicate %+v", dup)
			}

			if err := srv.DeleteList(ctx, "l1"); err != nil {
				t.Errorf("delete: %v", err)
			}
		})

		t.Run("Validates Input", func(t *testing.T) {
			srv := NewListService(Options{AccessToken: "tok"})
			if _, err := srv.CreateList(ctx, "  "); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
			bad := models.ListStatus("archived")
			if _, err := srv.UpdateList(ctx, "l1", models.ListPatch{Status: &bad}); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if _, err := srv.List(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Items", func(t *testing.T) {
		t.Run("CRUD", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/lists/l1/items", http.StatusOK, `[{"_id":"i1","name":"Milk","quantity":1,"status":"to_buy"}]`)
			api.reply("POST /api/lists/l1/items", http.StatusCreated, `{"_id":"i2","name":"Eggs","quantity":12,"status":"to_buy"}`)
			api.reply("GET /api/lists/l1/items/i1", http.StatusOK, `{"_id":"i1","name":"Milk","quantity":1,"status":"to_buy"}`)
			api.reply("PATCH /api/lists/l1/items/i1", http.StatusOK, `{"_id":"i1","name":"Milk","quantity":1,"status":"done"}`)
			api.reply("DELETE /api/lists/l1/items/i1", http.StatusOK, `{"message":"deleted"}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			items, err := srv.Items(ctx, "l1")
			if err != nil || len(items) != 1 {
				t.Fatalf("items: %v %+v", err, items)
			}

			added, err := srv.AddItem(ctx, "l1", models.NewItem{Name: "Eggs", Quantity: 12})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if added.Key() != "i2" {
				t.Errorf("unexpected item %+v", added)
			}

			item, err := srv.Item(ctx, "l1", "i1")
			if err != nil || item.Name != "Milk" {
				t.Fatalf("item: %v %+v", err, item)
			}

			done := models.ItemDone
			updated, err := srv.UpdateItem(ctx, "l1", "i1", models.ItemPatch{Status: &done})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Status != models.ItemDone {
				t.Errorf("unexpected status %s", updated.Status)
			}
			if got := api.body("PATCH /api/lists/l1/items/i1"); got != `{"status":"done"}` {
				t.Errorf("unexpected patch body %s", got)
			}

			if err := srv.DeleteItem(ctx, "l1", "i1"); err != nil {
				t.Errorf("delete: %v", err)
			}
		})

		t.Run("Missing Item", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/lists/l1/items/nope", http.StatusNotFound, `{"message":"Item not found"}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			_, err := srv.Item(ctx, "l1", "nope")
			if !errors.Is(err, shared.ErrItemNotFound) {
				t.Errorf("expected ErrItemNotFound, got %v", err)
			}
			if errors.Is(err, shared.ErrListNotFound) {
				t.Error("item 404 must not report a missing list")
			}
		})

		t.Run("Rejects Invalid Items", func(t *testing.T) {
			srv := NewListService(Options{AccessToken: "tok"})
			if _, err := srv.AddItem(ctx, "l1", models.NewItem{Name: "Milk"}); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			bad := models.ItemStatus("lost")
			if _, err := srv.UpdateItem(ctx, "l1", "i1", models.ItemPatch{Status: &bad}); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Share", func(t *testing.T) {
		t.Run("Owner Endpoints", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("POST /api/lists/l1/share", http.StatusCreated, `{"shareToken":"abc","shareUrl":"http://localhost:5173/share/abc"}`)
			api.reply("POST /api/lists/l1/share/revoke", http.StatusOK, `{"message":"revoked"}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			link, err := srv.GenerateLink(ctx, "l1", "Corner Shop")
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if link.ShareToken != "abc" {
				t.Errorf("unexpected link %+v", link)
			}
			if got := api.body("POST /api/lists/l1/share"); got != `{"shopkeeperName":"Corner Shop"}` {
				t.Errorf("unexpected body %s", got)
			}
			if err := srv.RevokeLink(ctx, "l1"); err != nil {
				t.Errorf("revoke: %v", err)
			}
		})

		t.Run("Public Endpoints Skip Authorization", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/share/abc", http.StatusOK,
				`{"list":{"_id":"l1","name":"Weekly","status":"shared"},"items":[{"_id":"i1","name":"Milk","status":"to_buy"}],"share":{"shareToken":"abc","status":"active"}}`)
			api.reply("POST /api/share/abc/accept", http.StatusOK, `{"shareToken":"abc","shopkeeperName":"Deli","status":"accepted"}`)
			api.reply("POST /api/share/abc/status", http.StatusOK, `{"_id":"l1","name":"Weekly","status":"completed"}`)
			api.reply("POST /api/share/abc/items/i1/status", http.StatusOK, `{"_id":"i1","name":"Milk","status":"substituted","notes":"oat"}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			view, err := srv.ViewSharedList(ctx, "abc")
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			if view.List.Key() != "l1" || len(view.Items) != 1 || view.Share.Status != models.ShareActive {
				t.Errorf("unexpected share response %+v", view)
			}

			data, err := srv.AcceptShare(ctx, "abc", "Deli")
			if err != nil || data.Status != models.ShareAccepted {
				t.Fatalf("accept: %v %+v", err, data)
			}

			list, err := srv.UpdateSharedListStatus(ctx, "abc", models.ListCompleted)
			if err != nil || list.Status != models.ListCompleted {
				t.Fatalf("status: %v %+v", err, list)
			}

			item, err := srv.UpdateSharedItemStatus(ctx, "abc", "i1", models.ItemSubstituted, "oat")
			if err != nil || item.Notes != "oat" {
				t.Fatalf("item status: %v %+v", err, item)
			}
			var body map[string]string
			json.Unmarshal([]byte(api.body("POST /api/share/abc/items/i1/status")), &body)
			if body["status"] != "substituted" || body["notes"] != "oat" {
				t.Errorf("unexpected item status body %v", body)
			}

			for i, h := range api.headers() {
				if h != "" {
					t.Errorf("request %d carried Authorization %q", i, h)
				}
			}
		})

		t.Run("Public Endpoints Work Without Token", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/share/abc", http.StatusOK, `{"list":{"_id":"l1"},"items":[],"share":{"shareToken":"abc","status":"active"}}`)
			srv := NewListService(Options{BaseURL: server.URL})

			if _, err := srv.ViewSharedList(ctx, "abc"); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("Revoked Token", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/share/gone", http.StatusNotFound, `{"message":"Share link not found or revoked"}`)
			srv := NewListService(Options{BaseURL: server.URL})

			_, err := srv.ViewSharedList(ctx, "gone")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != "Share link not found or revoked" {
				t.Errorf("unexpected message %q", apiErr.Message)
			}
			if !errors.Is(err, shared.ErrListNotFound) || !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected not found API error, got %v", err)
			}
		})

		t.Run("Validates Status", func(t *testing.T) {
			srv := NewListService(Options{})
			if _, err := srv.UpdateSharedItemStatus(ctx, "abc", "i1", "lost", ""); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if _, err := srv.UpdateSharedListStatus(ctx, "abc", "archived"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if _, err := srv.AcceptShare(ctx, "", "Deli"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Unauthorized", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/lists", http.StatusUnauthorized, `{"message":"Unauthorized","statusCode":401}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "expired"})

			_, err := srv.Lists(ctx)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if !strings.Contains(err.Error(), "status 401") {
				t.Errorf("expected status in message, got %v", err)
			}
		})

		t.Run("Validation Messages Are Joined", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("POST /api/lists", http.StatusBadRequest, `{"message":["name must be a string","name should not be empty"]}`)
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			_, err := srv.CreateList(ctx, "x")
			if err == nil || !strings.Contains(err.Error(), "name must be a string; name should not be empty") {
				t.Errorf("unexpected error %v", err)
			}
		})

		t.Run("Plain Text Errors", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.mux.HandleFunc("GET /api/lists", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusServiceUnavailable)
			})
			srv := NewListService(Options{BaseURL: server.URL, AccessToken: "tok"})

			_, err := srv.Lists(ctx)
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
			if !strings.Contains(err.Error(), "bad gateway") {
				t.Errorf("expected body in message, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			transport := tu.NewMockRoundTripper(nil, errors.New("connection failed"))
			srv := NewListService(Options{BaseURL: "http://example.com", AccessToken: "tok", Transport: transport})

			_, err := srv.Lists(ctx)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if reqs := transport.Requests(); len(reqs) != 1 || reqs[0].URL.Path != "/api/lists" {
				t.Errorf("expected one request to /api/lists, got %d", len(reqs))
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			transport := tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     http.Header{},
			}, nil)
			srv := NewListService(Options{BaseURL: "http://example.com", Transport: transport})

			_, err := srv.ViewSharedList(ctx, "abc")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			api, server := newFakeAPI(t)
			api.reply("GET /api/share/abc", http.StatusOK, `{"list":`)
			srv := NewListService(Options{BaseURL: server.URL})

			_, err := srv.ViewSharedList(ctx, "abc")
			if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
				t.Errorf("expected decode error, got %v", err)
			}
		})

		t.Run("Canceled Context", func(t *testing.T) {
			_, server := newFakeAPI(t)
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			srv := NewListService(Options{BaseURL: server.URL, RateLimit: 1})
			if _, err := srv.ViewSharedList(canceled, "abc"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})
}
