package noisegraph

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// ParamEntry is one row of a snapshot's parameter table. Value is what the
// user set; Default and Slider are the declaration it was last merged with.
type ParamEntry struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Value   Value  `json:"value"`
	Default Value  `json:"default"`
	Slider  *Range `json:"slider,omitempty"`
}

// Preview is the size and display scale of the preview texture.
type Preview struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// Preview bounds.
const (
	DefaultPreviewSize = 128
	MinPreviewScale    = 0.1
	MaxPreviewScale    = 10
)

// Normalize clamps the preview to a drawable size and scale.
func (p Preview) Normalize() Preview {
	p.Width = max(1, p.Width)
	p.Height = max(1, p.Height)
	if p.Scale == 0 {
		p.Scale = 1
	}
	p.Scale = min(max(p.Scale, MinPreviewScale), MaxPreviewScale)
	return p
}

// Snapshot is the persisted record of a graph's last successful compile
// plus the current parameter values. It is usable without the graph.
// Snapshots are replaced wholesale, never edited field by field: every
// method returns a new value and leaves the receiver alone.
type Snapshot struct {
	GraphRef string       `json:"graph_ref"`
	Artifact *Artifact    `json:"artifact,omitempty"`
	Params   []ParamEntry `json:"params"`
	Preview  Preview      `json:"preview"`
}

// NewSnapshot returns an empty snapshot with the default preview.
func NewSnapshot() Snapshot {
	return Snapshot{
		Params:  []ParamEntry{},
		Preview: Preview{Width: DefaultPreviewSize, Height: DefaultPreviewSize, Scale: 1},
	}
}

// Merge folds a freshly extracted parameter list into previous.
//
// For each fresh parameter, the previous value is carried forward when an
// entry with the same name and the same kind exists; otherwise the fresh
// default is used. A name that changed kind is a new parameter. Previous
// entries absent from fresh are dropped, and the result follows fresh's
// order. Merge never fails.
func Merge(previous Snapshot, fresh []Parameter) Snapshot {
	old := make(map[string]ParamEntry, len(previous.Params))
	for _, e := range previous.Params {
		old[e.Name] = e
	}

	out := previous.clone()
	out.Params = make([]ParamEntry, 0, len(fresh))
	for _, p := range fresh {
		entry := ParamEntry{
			Name:    p.Name,
			Kind:    p.Kind,
			Value:   p.Default,
			Default: p.Default,
			Slider:  cloneRange(p.Slider),
		}
		if prev, ok := old[p.Name]; ok && prev.Kind == p.Kind {
			entry.Value = prev.Value
		}
		out.Params = append(out.Params, entry)
	}
	return out
}

// WithArtifact records a successful compile of graphRef.
func (s Snapshot) WithArtifact(graphRef string, a *Artifact) Snapshot {
	out := s.clone()
	out.GraphRef = graphRef
	if a != nil {
		cp := *a
		out.Artifact = &cp
	}
	return out
}

// WithPreview replaces the preview settings, normalized.
func (s Snapshot) WithPreview(p Preview) Snapshot {
	out := s.clone()
	out.Preview = p.Normalize()
	return out
}

// SetValue returns a copy with one parameter's current value replaced.
func (s Snapshot) SetValue(name string, v Value) (Snapshot, error) {
	i := slices.IndexFunc(s.Params, func(e ParamEntry) bool { return e.Name == name })
	if i < 0 {
		return s, errors.Wrapf(ErrUnknownParameter, "%q", name)
	}
	switch s.Params[i].Kind {
	case Scalar:
		if v.Texture != "" {
			return s, errors.Wrapf(ErrKindMismatch, "%q is a scalar", name)
		}
		if !finite(v.Scalar) {
			return s, errors.Wrapf(ErrInvalidValue, "%q must be a finite number", name)
		}
	case Texture:
		if v.Scalar != 0 {
			return s, errors.Wrapf(ErrKindMismatch, "%q is a texture", name)
		}
		if v.Texture == "" {
			return s, errors.WithHint(errors.Wrapf(ErrInvalidValue, "%q needs a texture reference", name),
				"use a builtin texture name such as white or black to clear it")
		}
	}
	out := s.clone()
	out.Params[i].Value = v
	return out, nil
}

// Param looks up an entry by name.
func (s Snapshot) Param(name string) (ParamEntry, bool) {
	for _, e := range s.Params {
		if e.Name == name {
			return e, true
		}
	}
	return ParamEntry{}, false
}

// Stale reports whether a compiled artifact differs from the recorded one.
func (s Snapshot) Stale(a *Artifact) bool {
	return s.Artifact == nil || a == nil || s.Artifact.Version != a.Version
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Params = make([]ParamEntry, len(s.Params))
	for i, e := range s.Params {
		e.Slider = cloneRange(e.Slider)
		out.Params[i] = e
	}
	if s.Artifact != nil {
		cp := *s.Artifact
		out.Artifact = &cp
	}
	return out
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
