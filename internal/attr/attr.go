// Package attr resolves attribute references into their constituent
// ontology terms and parameters.
//
// Expansion order is fixed at every level of the hierarchy: a level's
// own directly-declared terms come first, then each referenced
// attribute's terms in the attribute's declared order, attributes in
// the order they were listed. Parameters follow the same rule.
package attr

import (
	"assayspec/internal/model"
)

// Registry holds every loaded attribute, keyed by attributeId. It is
// read-only after loading.
type Registry map[string]model.Attribute

// Expand resolves attributeIDs against the registry and returns the
// term ids and parameters of a hierarchy level: the level's own terms
// and parameters followed by each attribute's contribution. The
// returned slices are freshly allocated and never alias the inputs.
// An unresolved attributeId is a configuration error naming the id and
// the owning level.
func Expand(ownTerms []model.TermRef, ownParams []model.Parameter, attributeIDs []string, reg Registry, ownerPath string) ([]string, []model.Parameter, error) {
	terms := make([]string, 0, len(ownTerms))
	for _, t := range ownTerms {
		terms = append(terms, t.ID)
	}
	params := make([]model.Parameter, 0, len(ownParams))
	params = append(params, ownParams...)

	for _, id := range attributeIDs {
		a, ok := reg[id]
		if !ok {
			return nil, nil, model.NewConfigError(ownerPath, "unresolved attribute reference %q", id)
		}
		for _, t := range a.Terms {
			terms = append(terms, t.ID)
		}
		params = append(params, a.Parameters...)
	}
	return terms, params, nil
}
