package store

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/blatherlabs/blather/pkg/markov"
)

// setupTestStore creates a file-backed SQLite database and a Store for
// testing. It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

func testSnapshot(t *testing.T) *markov.Snapshot {
	t.Helper()
	m := markov.NewModel(2, nil)
	m.AnalyzeText("one fish two fish. red fish blue fish.")
	return m.Snapshot()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	snap := testSnapshot(t)

	if err := s.Save(ctx, "test_model", snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "test_model")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(loaded, snap) {
		t.Errorf("loaded snapshot differs from saved:\ngot  %+v\nwant %+v", loaded, snap)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "test_model", testSnapshot(t)); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	small := markov.NewModel(1, nil)
	small.Analyze([]string{"a", "b"})
	replacement := small.Snapshot()

	if err := s.Save(ctx, "test_model", replacement); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "test_model")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, replacement) {
		t.Error("Save did not fully replace the previous snapshot")
	}
	if loaded.Order != 1 {
		t.Errorf("order = %d, want 1", loaded.Order)
	}
}

func TestLoadMissingModel(t *testing.T) {
	_, s := setupTestStore(t)

	_, err := s.Load(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "first", testSnapshot(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "second", testSnapshot(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	models, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	info, ok := models["first"]
	if !ok {
		t.Fatal("expected to find 'first'")
	}
	if info.Order != 2 {
		t.Errorf("order = %d, want 2", info.Order)
	}
}

func TestDelete(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "to_delete", testSnapshot(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "to_keep", testSnapshot(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Delete(ctx, "to_delete"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Load(ctx, "to_delete"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Node and link rows for the deleted model must be gone too.
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chain_nodes").Scan(&count)
	if count == 0 {
		t.Error("expected the kept model's nodes to remain")
	}

	if _, err := s.Load(ctx, "to_keep"); err != nil {
		t.Errorf("kept model should still load: %v", err)
	}

	if err := s.Delete(ctx, "to_delete"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting a missing model, got %v", err)
	}
}

func TestStoredModelGeneratesIdentically(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	m := markov.NewModel(2, nil)
	m.AnalyzeText("one fish two fish. red fish blue fish.")

	if err := s.Save(ctx, "gen_model", m.Snapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	snap, err := s.Load(ctx, "gen_model")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	restored := markov.FromSnapshot(snap, nil)

	opts := []markov.GenerateOption{
		markov.WithKeywords("fish"),
		markov.WithTargetLength(4),
		markov.WithMaxLength(30),
	}
	rngA := rand.New(rand.NewPCG(7, 13))
	rngB := rand.New(rand.NewPCG(7, 13))
	for i := 0; i < 10; i++ {
		a := m.GenerateOnce(rngA, opts...)
		b := restored.GenerateOnce(rngB, opts...)
		if a != b {
			t.Fatalf("attempt %d diverged: original %+v, restored %+v", i, a, b)
		}
	}
}
