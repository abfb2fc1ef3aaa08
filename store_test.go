package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
)

// storeUnderTest runs the same contract suite over both implementations.
func storeUnderTest(t *testing.T, name string) DocumentStore {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "sqlite":
		db, err := OpenDB(filepath.Join(t.TempDir(), "store.db"))
		if err != nil {
			t.Fatal(err)
		}
		if err := AutoMigrate(db); err != nil {
			t.Fatal(err)
		}
		return NewSQLStore(db)
	}
	t.Fatalf("unknown store %q", name)
	return nil
}

func TestDocumentStoreContract(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				store := storeUnderTest(t, name)
				var out map[string]any
				ok, err := store.Get(context.Background(), "users/nobody", &out)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Error("missing path reported as found")
				}
			})

			t.Run("set then get leaf", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				in := map[string]any{"currentQuestion": 3.0, "completed": false}
				if err := store.Set(ctx, "users/abc1", in); err != nil {
					t.Fatal(err)
				}
				var out map[string]any
				ok, err := store.Get(ctx, "users/abc1", &out)
				if err != nil || !ok {
					t.Fatalf("get: ok=%v err=%v", ok, err)
				}
				if !reflect.DeepEqual(out, in) {
					t.Errorf("got %v, want %v", out, in)
				}
			})

			t.Run("interior path assembles subtree", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				if err := store.Set(ctx, "responses/u1/q1", map[string]any{"value": 5.0}); err != nil {
					t.Fatal(err)
				}
				if err := store.Set(ctx, "responses/u1/q2", map[string]any{"value": "yes"}); err != nil {
					t.Fatal(err)
				}
				if err := store.Set(ctx, "responses/u2/q1", map[string]any{"value": 1.0}); err != nil {
					t.Fatal(err)
				}

				var all map[string]map[string]StoredResponse
				ok, err := store.Get(ctx, "responses", &all)
				if err != nil || !ok {
					t.Fatalf("get: ok=%v err=%v", ok, err)
				}
				if len(all) != 2 || len(all["u1"]) != 2 {
					t.Errorf("assembled view = %v", all)
				}
				if all["u1"]["q2"].Value != "yes" {
					t.Errorf("u1/q2 = %v", all["u1"]["q2"])
				}
			})

			t.Run("set replaces subtree", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				if err := store.Set(ctx, "responses/u1/q1", map[string]any{"value": 1.0}); err != nil {
					t.Fatal(err)
				}
				if err := store.Set(ctx, "responses/u1", map[string]any{"replaced": true}); err != nil {
					t.Fatal(err)
				}
				var out map[string]any
				ok, err := store.Get(ctx, "responses/u1", &out)
				if err != nil || !ok {
					t.Fatalf("get: ok=%v err=%v", ok, err)
				}
				if _, stale := out["q1"]; stale {
					t.Errorf("old child survived the overwrite: %v", out)
				}
			})

			t.Run("update merges fields", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				if err := store.Set(ctx, "users/abc1", map[string]any{"currentQuestion": 1.0, "startedAt": 111.0}); err != nil {
					t.Fatal(err)
				}
				if err := store.Update(ctx, "users/abc1", map[string]any{"currentQuestion": 4.0}); err != nil {
					t.Fatal(err)
				}
				var out map[string]any
				if _, err := store.Get(ctx, "users/abc1", &out); err != nil {
					t.Fatal(err)
				}
				if out["currentQuestion"] != 4.0 || out["startedAt"] != 111.0 {
					t.Errorf("merged doc = %v", out)
				}
			})

			t.Run("update creates missing doc", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				if err := store.Update(ctx, "users/new1", map[string]any{"completed": true}); err != nil {
					t.Fatal(err)
				}
				var out map[string]any
				ok, err := store.Get(ctx, "users/new1", &out)
				if err != nil || !ok {
					t.Fatalf("get: ok=%v err=%v", ok, err)
				}
				if out["completed"] != true {
					t.Errorf("doc = %v", out)
				}
			})

			t.Run("subscribe fires immediately and on overlapping writes", func(t *testing.T) {
				store := storeUnderTest(t, name)
				ctx := context.Background()
				var got []json.RawMessage
				cancel := store.Subscribe("responses", func(raw json.RawMessage) {
					got = append(got, raw)
				})
				defer cancel()

				if len(got) != 1 || got[0] != nil {
					t.Fatalf("initial callback: %v", got)
				}
				if err := store.Set(ctx, "responses/u1/q1", map[string]any{"value": 2.0}); err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 {
					t.Fatalf("callbacks after write: %d", len(got))
				}
				var view map[string]map[string]StoredResponse
				if err := json.Unmarshal(got[1], &view); err != nil {
					t.Fatal(err)
				}
				if len(view["u1"]) != 1 {
					t.Errorf("subscribed view = %v", view)
				}

				// A write outside the subtree does not fire.
				if err := store.Set(ctx, "users/u1", map[string]any{"completed": false}); err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 {
					t.Errorf("unrelated write fired the subscription")
				}

				cancel()
				if err := store.Set(ctx, "responses/u1/q2", map[string]any{"value": 3.0}); err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 {
					t.Errorf("canceled subscription still fired")
				}
			})
		})
	}
}

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"responses", "responses", true},
		{"responses", "responses/u1/q1", true},
		{"responses/u1/q1", "responses", true},
		{"responses", "responsesx/u1", false},
		{"users", "responses", false},
	}
	for _, tt := range tests {
		if got := pathsOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("pathsOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"responses/u1", "responses/u1"},
		{"a%b", `a\%b`},
		{"a_b", `a\_b`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
