package terms

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry holds resolved target terms (accession -> categorized term
// ids) and term names (term id -> label). It is written during the
// enrichment phase under a single mutex and is read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]CategoryTerms
	names   map[string]string
	claimed map[string]bool // ChEBI ids a worker is already naming
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]CategoryTerms),
		names:   make(map[string]string),
		claimed: make(map[string]bool),
	}
}

// Resolve returns the categorized term ids of an accession.
func (r *Registry) Resolve(accession string) (CategoryTerms, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.targets[accession]
	return ct, ok
}

// Name returns the label of a term id.
func (r *Registry) Name(termID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.names[termID]
	return n, ok
}

// TargetTerms returns a copy of the accession -> terms mapping.
func (r *Registry) TargetTerms() map[string]CategoryTerms {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]CategoryTerms, len(r.targets))
	for k, v := range r.targets {
		out[k] = v
	}
	return out
}

// Names returns a copy of the term id -> label mapping.
func (r *Registry) Names() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

// Enrich resolves every accession not yet in the registry. Lookups are
// independent and run on a bounded worker pool; duplicate accessions
// and duplicate ChEBI name lookups are deduplicated before dispatch.
// The first failed lookup cancels the pool and fails the phase - a
// partial term set is never kept.
func (r *Registry) Enrich(ctx context.Context, c *Client, accessions []string, workers int) error {
	if workers < 1 {
		workers = 1
	}

	pending := make([]string, 0, len(accessions))
	seen := make(map[string]bool, len(accessions))
	r.mu.RLock()
	for _, acc := range accessions {
		if seen[acc] {
			continue
		}
		seen[acc] = true
		if _, done := r.targets[acc]; !done {
			pending = append(pending, acc)
		}
	}
	r.mu.RUnlock()
	if len(pending) == 0 {
		return nil
	}
	c.log.Info("enriching targets", zap.Int("accessions", len(pending)), zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, acc := range pending {
		acc := acc
		g.Go(func() error {
			ct, goNames, chebiIDs, err := c.FetchTargetTerms(gctx, acc)
			if err != nil {
				return err
			}
			r.mu.Lock()
			r.targets[acc] = ct
			for id, name := range goNames {
				r.names[id] = name
			}
			todo := make([]string, 0, len(chebiIDs))
			for _, id := range chebiIDs {
				if _, known := r.names[id]; known || r.claimed[id] {
					continue
				}
				r.claimed[id] = true
				todo = append(todo, id)
			}
			r.mu.Unlock()

			for _, id := range todo {
				name, err := c.FetchChEBIName(gctx, id)
				if err != nil {
					return err
				}
				r.mu.Lock()
				r.names[id] = name
				r.mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}
