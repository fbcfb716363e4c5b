package keyword

import (
	"math"
	"path/filepath"
	"testing"
)

func TestExtractTerms(t *testing.T) {
	terms := ExtractTerms("The database IS slow and the Connection to it failed")
	for _, want := range []string{"database", "slow", "connection", "failed"} {
		if _, ok := terms[want]; !ok {
			t.Errorf("missing term %q in %v", want, terms)
		}
	}
	// Stop words and short words are excluded.
	for _, banned := range []string{"the", "is", "and", "to", "it"} {
		if _, ok := terms[banned]; ok {
			t.Errorf("term %q should be filtered", banned)
		}
	}
}

func TestOverlapSearchScoring(t *testing.T) {
	idx := NewOverlapIndex()
	if err := idx.Index(1, "python database connection pooling"); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Index(2, "javascript promise chaining"); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search("database connection timeout", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("results = %+v, want doc 1 only", results)
	}
	// 2 of 3 query terms match.
	if math.Abs(results[0].Score-2.0/3.0) > 1e-9 {
		t.Errorf("score = %f, want %f", results[0].Score, 2.0/3.0)
	}
}

func TestOverlapSearchTieBreaksByLargerID(t *testing.T) {
	idx := NewOverlapIndex()
	idx.Index(1, "redis cache eviction")
	idx.Index(2, "redis cache eviction")
	results, err := idx.Search("redis cache", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].ID != 2 || results[1].ID != 1 {
		t.Errorf("tie order = [%d %d], want [2 1]", results[0].ID, results[1].ID)
	}
}

func TestOverlapDelete(t *testing.T) {
	idx := NewOverlapIndex()
	idx.Index(1, "docker compose networking")
	if err := idx.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, _ := idx.Search("docker networking", 10)
	if len(results) != 0 {
		t.Errorf("deleted doc still returned: %+v", results)
	}
	if idx.Len() != 0 {
		t.Errorf("Len = %d after delete", idx.Len())
	}
}

func TestOverlapReindexReplaces(t *testing.T) {
	idx := NewOverlapIndex()
	idx.Index(1, "old topic about kafka")
	idx.Index(1, "new topic about postgres")
	if results, _ := idx.Search("kafka", 10); len(results) != 0 {
		t.Errorf("stale terms survived reindex: %+v", results)
	}
	if results, _ := idx.Search("postgres", 10); len(results) != 1 {
		t.Errorf("new terms not found: %+v", results)
	}
}

func TestOverlapSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json")
	idx := NewOverlapIndex()
	idx.Index(7, "terraform state locking")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := NewOverlapIndex()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	results, _ := restored.Search("terraform locking", 10)
	if len(results) != 1 || results[0].ID != 7 {
		t.Errorf("restored search = %+v", results)
	}
}

func TestOverlapLoadMissingFileIsNoop(t *testing.T) {
	idx := NewOverlapIndex()
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
