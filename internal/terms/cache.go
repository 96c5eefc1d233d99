package terms

import (
	"errors"
	"io/fs"
	"os"

	"assayspec/internal/artifact"
)

// cacheDoc is the on-disk shape of the target-term cache artifact.
type cacheDoc struct {
	Meta    artifact.Meta            `json:"meta"`
	Targets map[string]CategoryTerms `json:"targets"`
	Terms   map[string]string        `json:"terms"`
}

// LoadCache loads a previously persisted term cache. ok is false when
// no cache exists at path.
func LoadCache(path string) (*Registry, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	var doc cacheDoc
	if err := artifact.ReadGzipJSON(path, &doc); err != nil {
		return nil, false, err
	}
	r := NewRegistry()
	for acc, ct := range doc.Targets {
		r.targets[acc] = ct
	}
	for id, name := range doc.Terms {
		r.names[id] = name
	}
	return r, true, nil
}

// SaveCache persists the registry so later runs skip the network.
func (r *Registry) SaveCache(path string) error {
	doc := cacheDoc{
		Meta:    artifact.NewMeta(),
		Targets: r.TargetTerms(),
		Terms:   r.Names(),
	}
	return artifact.WriteGzipJSON(path, doc)
}
