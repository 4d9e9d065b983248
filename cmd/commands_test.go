package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/realtime"
	"github.com/desertthunder/listsync/internal/repositories"
	"github.com/desertthunder/listsync/internal/shared"
	tu "github.com/desertthunder/listsync/internal/testing"
)

const (
	listJSON  = `{"_id":"list-1","name":"Weekly","status":"draft"}`
	itemsJSON = `[{"_id":"a","name":"Milk","quantity":1,"status":"to_buy"},{"_id":"b","name":"Eggs","quantity":12,"status":"done"}]`
)

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	runner *Runner
	output *syncBuffer
	dialer *tu.FakeDialer
	config *shared.Config

	mu     sync.Mutex
	bodies map[string]string
}

func (f *fixture) body(route string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[route]
}

// newFixture serves a single list over a fake REST API.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{output: &syncBuffer{}, dialer: &tu.FakeDialer{}, bodies: map[string]string{}}

	mux := http.NewServeMux()
	reply := func(pattern string, status int, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(body))
		})
	}
	reply("GET /api/lists", http.StatusOK, `[`+listJSON+`,{"_id":"list-2","name":"Party","status":"completed"}]`)
	reply("POST /api/lists", http.StatusCreated, `{"_id":"list-3","name":"Picnic","status":"draft"}`)
	reply("GET /api/lists/list-1", http.StatusOK, listJSON)
	reply("PATCH /api/lists/list-1", http.StatusOK, `{"_id":"list-1","name":"Monthly","status":"draft"}`)
	reply("DELETE /api/lists/list-1", http.StatusNoContent, ``)
	reply("GET /api/lists/list-1/items", http.StatusOK, itemsJSON)
	reply("POST /api/lists/list-1/items", http.StatusCreated, `{"_id":"c","name":"Bread","quantity":2,"status":"to_buy"}`)
	reply("GET /api/lists/list-1/items/a", http.StatusOK, `{"_id":"a","name":"Milk","quantity":1,"status":"to_buy"}`)
	reply("PATCH /api/lists/list-1/items/a", http.StatusOK, `{"_id":"a","name":"Milk","quantity":1,"status":"in_progress"}`)
	reply("POST /api/lists/list-1/share", http.StatusOK, `{"shareToken":"tok","shareUrl":"http://lists.test/share/tok"}`)
	reply("POST /api/lists/list-1/share/revoke", http.StatusNoContent, ``)
	reply("GET /api/share/tok", http.StatusOK, `{"list":`+listJSON+`,"items":`+itemsJSON+`,"share":{"shareToken":"tok","status":"active","shopkeeperName":"Ana"}}`)
	reply("POST /api/share/tok/accept", http.StatusOK, `{"shareToken":"tok","status":"accepted","shopkeeperName":"Ana"}`)
	reply("GET /api/share/gone", http.StatusNotFound, `{"message":"share not found"}`)
	reply("GET /api/share/nokey", http.StatusOK, `{"list":{"name":"Loose","status":"shared"},"items":`+itemsJSON+`,"share":{"shareToken":"nokey","status":"active"}}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies[r.Method+" "+r.URL.Path] = string(data)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	f.config = shared.DefaultConfig()
	f.config.API.BaseURL = srv.URL
	f.config.API.AccessToken = "secret"
	f.config.Database = tu.CacheConfig(t)

	f.runner = NewRunner(RunnerOpts{
		Config: f.config,
		Dialer: f.dialer,
		Logger: shared.DiscardLogger(),
		Output: f.output,
	})
	return f
}

func (f *fixture) run(ctx context.Context, args ...string) error {
	app := &cli.Command{Name: "listsync", Commands: f.runner.register()}
	return app.Run(ctx, append([]string{"listsync"}, args...))
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if err := f.run(t.Context(), args...); err != nil {
		t.Fatalf("%v: expected no error, got %v", args, err)
	}
	return f.output.String()
}

func TestListsCommands(t *testing.T) {
	t.Run("ls", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "ls")
		if !strings.Contains(out, "Weekly") || !strings.Contains(out, "Party") {
			t.Errorf("expected both lists, got %q", out)
		}
	})

	t.Run("ls filters by status as JSON", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "ls", "--status", "completed", "--json")

		var lists []models.GroceryList
		if err := json.Unmarshal([]byte(out), &lists); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", out, err)
		}
		if len(lists) != 1 || lists[0].Name != "Party" {
			t.Errorf("unexpected lists %+v", lists)
		}
	})

	t.Run("ls rejects unknown status", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "lists", "ls", "--status", "archived")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected invalid flag error, got %v", err)
		}
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "create", "Picnic")
		if !strings.Contains(out, "list-3") {
			t.Errorf("expected created list, got %q", out)
		}
		if body := f.body("POST /api/lists"); !strings.Contains(body, `"Picnic"`) {
			t.Errorf("expected name in request body, got %q", body)
		}
	})

	t.Run("create requires a name", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "lists", "create")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument error, got %v", err)
		}
	})

	t.Run("show renders the board", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "show", "list-1")
		for _, want := range []string{"Weekly", "Milk", "Eggs"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}
	})

	t.Run("show as csv", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "show", "--format", "csv", "list-1")
		if !strings.Contains(out, "Milk") || strings.Count(out, "\n") < 3 {
			t.Errorf("expected CSV rows, got %q", out)
		}
	})

	t.Run("rename", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "rename", "list-1", "Monthly")
		if !strings.Contains(out, "Monthly") {
			t.Errorf("expected renamed list, got %q", out)
		}
		if body := f.body("PATCH /api/lists/list-1"); body != `{"name":"Monthly"}` {
			t.Errorf("unexpected patch body %q", body)
		}
	})

	t.Run("status rejects unknown value", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "lists", "status", "list-1", "archived")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument error, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "lists", "delete", "list-1")
		if !strings.Contains(out, "Deleted") {
			t.Errorf("expected confirmation, got %q", out)
		}
	})

	t.Run("export", func(t *testing.T) {
		f := newFixture(t)
		dir := filepath.Join(t.TempDir(), "out")
		out := f.mustRun(t, "lists", "export", "--output", dir, "--format", "markdown", "--rate-limit", "100", "list-1")
		if !strings.Contains(out, "1 of 1 lists") {
			t.Errorf("expected summary, got %q", out)
		}
		tu.AssertDirExists(t, dir)
	})

	t.Run("export requires ids", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "lists", "export")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument error, got %v", err)
		}
	})
}

func TestItemsCommands(t *testing.T) {
	t.Run("ls shows progress", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "items", "ls", "list-1")
		if !strings.Contains(out, "1/2 (50%)") {
			t.Errorf("expected progress, got %q", out)
		}
	})

	t.Run("add", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "items", "add", "--quantity", "2", "list-1", "Bread")

		var body models.NewItem
		if err := json.Unmarshal([]byte(f.body("POST /api/lists/list-1/items")), &body); err != nil {
			t.Fatalf("expected JSON body: %v", err)
		}
		if body.Name != "Bread" || body.Quantity != 2 {
			t.Errorf("unexpected item %+v", body)
		}
	})

	t.Run("add rejects zero quantity", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "items", "add", "--quantity", "0", "list-1", "Bread")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input error, got %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "items", "status", "list-1", "a", "in progress")
		if body := f.body("PATCH /api/lists/list-1/items/a"); body != `{"status":"in_progress"}` {
			t.Errorf("unexpected patch body %q", body)
		}
	})

	t.Run("cycle advances the status", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "items", "cycle", "--json", "list-1", "a")
		if body := f.body("PATCH /api/lists/list-1/items/a"); body != `{"status":"in_progress"}` {
			t.Errorf("unexpected patch body %q", body)
		}
		if !strings.Contains(out, `"in_progress"`) {
			t.Errorf("expected updated item, got %q", out)
		}
	})
}

func TestShareCommands(t *testing.T) {
	t.Run("link remembers the token", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "share", "link", "--shopkeeper", "Ana", "--remember", "list-1")
		if !strings.Contains(out, "http://lists.test/share/tok") {
			t.Errorf("expected share URL, got %q", out)
		}

		db := tu.MustOpenCache(t, f.config.Database)

		tok, err := repositories.NewShareTokenRepository(db).ForList("list-1")
		if err != nil {
			t.Fatalf("expected stored token, got %v", err)
		}
		if tok.Token != "tok" || tok.ShopkeeperName != "Ana" {
			t.Errorf("unexpected token %+v", tok)
		}
	})

	t.Run("revoke forgets remembered tokens", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "share", "link", "--remember", "list-1")
		f.mustRun(t, "share", "revoke", "list-1")

		db := tu.MustOpenCache(t, f.config.Database)

		if _, err := repositories.NewShareTokenRepository(db).ForList("list-1"); err == nil {
			t.Error("expected token to be forgotten")
		}
	})

	t.Run("view", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "share", "view", "tok")
		if !strings.Contains(out, "Weekly") || !strings.Contains(out, "Ana") {
			t.Errorf("expected shared list, got %q", out)
		}
	})

	t.Run("view of a revoked link", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "share", "view", "gone")
		if !errors.Is(err, shared.ErrListNotFound) {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("accept", func(t *testing.T) {
		f := newFixture(t)
		out := f.mustRun(t, "share", "accept", "tok", "Ana")
		if !strings.Contains(out, "accepted by Ana") {
			t.Errorf("expected accepted label, got %q", out)
		}
	})
}

func TestWatchCommand(t *testing.T) {
	t.Run("requires a list", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t.Context(), "watch")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument error, got %v", err)
		}
	})

	t.Run("prints and caches live updates", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- f.run(ctx, "watch", "--cache", "list-1") }()

		subscribed := tu.Eventually(func() bool {
			c := f.dialer.Last()
			return c != nil && len(c.Emitted(realtime.EmitSubscribe)) > 0
		}, 2*time.Second)
		if !subscribed {
			t.Fatal("expected a subscribe emission")
		}
		if !tu.Eventually(func() bool { return strings.Contains(f.output.String(), "load") }, time.Second) {
			t.Fatalf("expected initial state, got %q", f.output.String())
		}

		f.dialer.Last().Push(realtime.EventItemUpdated, `{"_id":"a","status":"done"}`)
		if !tu.Eventually(func() bool { return strings.Contains(f.output.String(), string(realtime.EventItemUpdated)) }, time.Second) {
			t.Fatalf("expected item update, got %q", f.output.String())
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected clean exit, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop")
		}

		db := tu.MustOpenCache(t, f.config.Database)

		snap, err := repositories.NewSnapshotRepository(db).Latest("list-1")
		if err != nil {
			t.Fatalf("expected cached snapshot, got %v", err)
		}
		if snap.Items()[0].Status != models.ItemDone {
			t.Errorf("expected cached item update, got %+v", snap.Items())
		}
	})

	t.Run("shared list without an id", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- f.run(ctx, "watch", "--share-token", "nokey") }()

		if !tu.Eventually(func() bool { return strings.Contains(f.output.String(), "Loose") }, 2*time.Second) {
			t.Fatalf("expected initial state, got %q", f.output.String())
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected clean exit, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop")
		}
		if f.dialer.Dials() != 0 {
			t.Errorf("expected no realtime connection, got %d dials", f.dialer.Dials())
		}
	})
}

func TestCacheCommands(t *testing.T) {
	f := newFixture(t)

	db := tu.MustOpenCache(t, f.config.Database)
	list := models.GroceryList{MongoID: "list-1", Name: "Weekly", Status: models.ListShared}
	items := []models.ListItem{{MongoID: "a", Name: "Milk", Quantity: 1, Status: models.ItemDone}}
	if err := repositories.NewSnapshotRepository(db).Save(models.NewSnapshot(list, items, models.ShareAccepted, "Ana", true), 5); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	t.Run("ls", func(t *testing.T) {
		out := f.mustRun(t, "cache", "ls", "--json")

		var cached []cachedList
		if err := json.Unmarshal([]byte(out), &cached); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", out, err)
		}
		if len(cached) != 1 || cached[0].ListID != "list-1" || !cached[0].Revoked {
			t.Errorf("unexpected cache listing %+v", cached)
		}
	})

	t.Run("show", func(t *testing.T) {
		out := f.mustRun(t, "cache", "show", "list-1")
		if !strings.Contains(out, "Milk") || !strings.Contains(out, "share revoked") {
			t.Errorf("expected cached board, got %q", out)
		}
	})

	t.Run("rm", func(t *testing.T) {
		f.mustRun(t, "cache", "rm", "list-1")

		err := f.run(t.Context(), "cache", "show", "list-1")
		if !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected snapshot not found, got %v", err)
		}
	})
}
