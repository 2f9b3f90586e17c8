package refdata

import (
	"context"

	"tickrec/internal/model"
)

// Static serves reference data from memory, typically loaded from the config
// file. Keys missing from IDs resolve to themselves.
type Static struct {
	IDs       map[string]string
	Snapshots map[string]model.Fields
}

func NewStatic(ids map[string]string, snapshots map[string]model.Fields) *Static {
	return &Static{IDs: ids, Snapshots: snapshots}
}

func (s *Static) Resolve(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if id, ok := s.IDs[key]; ok && id != "" {
			out[key] = id
			continue
		}
		out[key] = key
	}
	return out, nil
}

func (s *Static) Snapshot(ctx context.Context, keys []string) (map[string]model.Fields, error) {
	out := make(map[string]model.Fields, len(keys))
	for _, key := range keys {
		if f, ok := s.Snapshots[key]; ok {
			out[key] = f.Clone()
		}
	}
	return out, nil
}
