package terms

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// enrichHandler serves minimal UniProt entries, each carrying the same
// ChEBI id, and counts requests per endpoint.
func enrichHandler(uniprotHits, chebiHits *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ols/") {
			chebiHits.Add(1)
			w.Write([]byte(`{"label": "ATP"}`))
			return
		}
		uniprotHits.Add(1)
		acc := strings.TrimSuffix(filepath.Base(r.URL.Path), ".json")
		fmt.Fprintf(w, `{
			"comments": [{
				"commentType": "CATALYTIC ACTIVITY",
				"reaction": {"reactionCrossReferences": [{"database": "ChEBI", "id": "CHEBI:15422"}]}
			}],
			"uniProtKBCrossReferences": [
				{"database": "GO", "id": "GO:%s", "properties": [{"key": "GoTerm", "value": "F:binding of %s"}]}
			]
		}`, acc, acc)
	})
}

func TestEnrich(t *testing.T) {
	var uniprotHits, chebiHits atomic.Int64
	client, _ := testClient(t, enrichHandler(&uniprotHits, &chebiHits), 0)

	reg := NewRegistry()
	// Duplicates must be deduplicated before dispatch.
	accs := []string{"P1", "P2", "P3", "P1", "P2"}
	if err := reg.Enrich(context.Background(), client, accs, 4); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if got := uniprotHits.Load(); got != 3 {
		t.Errorf("expected 3 UniProt requests, got %d", got)
	}
	// All three targets share one ChEBI id: exactly one name lookup.
	if got := chebiHits.Load(); got != 1 {
		t.Errorf("expected 1 ChEBI name lookup, got %d", got)
	}

	ct, ok := reg.Resolve("P2")
	if !ok {
		t.Fatal("P2 not resolved")
	}
	if len(ct.Function) != 1 || ct.Function[0] != "GO:P2" {
		t.Errorf("P2 Function terms: %v", ct.Function)
	}
	if name, ok := reg.Name("CHEBI:15422"); !ok || name != "ATP" {
		t.Errorf("ChEBI name: %q (ok=%v)", name, ok)
	}
	if name, ok := reg.Name("GO:P1"); !ok || name != "binding of P1" {
		t.Errorf("GO name: %q (ok=%v)", name, ok)
	}
}

func TestEnrich_SkipsResolvedAccessions(t *testing.T) {
	var uniprotHits, chebiHits atomic.Int64
	client, _ := testClient(t, enrichHandler(&uniprotHits, &chebiHits), 0)

	reg := NewRegistry()
	if err := reg.Enrich(context.Background(), client, []string{"P1"}, 2); err != nil {
		t.Fatalf("first Enrich failed: %v", err)
	}
	if err := reg.Enrich(context.Background(), client, []string{"P1", "P2"}, 2); err != nil {
		t.Fatalf("second Enrich failed: %v", err)
	}
	if got := uniprotHits.Load(); got != 2 {
		t.Errorf("expected 2 UniProt requests across both runs, got %d", got)
	}
}

func TestEnrich_FailureAbortsPhase(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "P2") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}), 0)

	reg := NewRegistry()
	err := reg.Enrich(context.Background(), client, []string{"P1", "P2", "P3"}, 1)
	if err == nil {
		t.Fatal("expected enrichment failure")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	var uniprotHits, chebiHits atomic.Int64
	client, _ := testClient(t, enrichHandler(&uniprotHits, &chebiHits), 0)

	reg := NewRegistry()
	if err := reg.Enrich(context.Background(), client, []string{"P1"}, 1); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "targets.json.gz")
	if err := reg.SaveCache(path); err != nil {
		t.Fatalf("SaveCache failed: %v", err)
	}

	loaded, ok, err := LoadCache(path)
	if err != nil || !ok {
		t.Fatalf("LoadCache failed: ok=%v err=%v", ok, err)
	}
	ct, ok := loaded.Resolve("P1")
	if !ok || len(ct.ChEBI) != 1 {
		t.Errorf("cached target terms wrong: %+v (ok=%v)", ct, ok)
	}
	if name, ok := loaded.Name("CHEBI:15422"); !ok || name != "ATP" {
		t.Errorf("cached name wrong: %q (ok=%v)", name, ok)
	}
}

func TestLoadCache_Missing(t *testing.T) {
	reg, ok, err := LoadCache(filepath.Join(t.TempDir(), "absent.json.gz"))
	if err != nil {
		t.Fatalf("missing cache must not error: %v", err)
	}
	if ok || reg != nil {
		t.Error("missing cache must report ok=false")
	}
}
