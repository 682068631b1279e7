package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises the Store interface contract against any
// implementation, mirroring the teacher's table-driven store tests.
func runStoreContract(t *testing.T, newStore func() Store) {
	t.Helper()

	t.Run("load missing returns ErrNotFound", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		_, err := s.Load(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		g := SavedGraph{ID: "g1", Name: "hello", Definition: []byte(`{"nodes":[]}`), UpdatedAt: time.Now()}
		if err := s.Save(context.Background(), g); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load(context.Background(), "g1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Name != g.Name || string(got.Definition) != string(g.Definition) {
			t.Fatalf("Load returned %+v, want %+v", got, g)
		}
	})

	t.Run("save overwrites existing id", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		ctx := context.Background()
		_ = s.Save(ctx, SavedGraph{ID: "g1", Name: "v1", Definition: []byte(`{}`), UpdatedAt: time.Now()})
		_ = s.Save(ctx, SavedGraph{ID: "g1", Name: "v2", Definition: []byte(`{"x":1}`), UpdatedAt: time.Now()})
		got, err := s.Load(ctx, "g1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Name != "v2" {
			t.Fatalf("Load after overwrite = %q, want v2", got.Name)
		}
	})

	t.Run("list returns every saved graph", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		ctx := context.Background()
		_ = s.Save(ctx, SavedGraph{ID: "a", Name: "a", Definition: []byte(`{}`), UpdatedAt: time.Now()})
		_ = s.Save(ctx, SavedGraph{ID: "b", Name: "b", Definition: []byte(`{}`), UpdatedAt: time.Now().Add(time.Second)})
		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("List returned %d graphs, want 2", len(list))
		}
	})

	t.Run("delete removes the graph", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		ctx := context.Background()
		_ = s.Save(ctx, SavedGraph{ID: "g1", Name: "v1", Definition: []byte(`{}`), UpdatedAt: time.Now()})
		if err := s.Delete(ctx, "g1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Load(ctx, "g1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete of unknown id is not an error", func(t *testing.T) {
		s := newStore()
		defer s.Close()
		if err := s.Delete(context.Background(), "never-existed"); err != nil {
			t.Fatalf("Delete(unknown) = %v, want nil", err)
		}
	})
}

func TestMemStore(t *testing.T) {
	runStoreContract(t, func() Store { return NewMemStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func() Store {
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		return s
	})
}
