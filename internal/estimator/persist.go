package estimator

import (
	"fmt"
	"io"
	"math"

	"shelflife/internal/artifact"
	"shelflife/internal/features"
	"shelflife/internal/models"

	"go.uber.org/zap"
)

// ArtifactKind identifies forest envelopes.
const ArtifactKind = "forest"

type forestState struct {
	Params     Params    `json:"params"`
	Schema     []string  `json:"schema"`
	Importance []float64 `json:"importance"`
	Trees      []*tree   `json:"trees"`
	Fitted     bool      `json:"fitted"`
}

// Save writes the fitted forest as one artifact.
func (f *Forest) Save(w io.Writer) error {
	if !f.Fitted() {
		return fmt.Errorf("forest save: %w", models.ErrNotFitted)
	}
	return artifact.Encode(w, ArtifactKind, forestState{
		Params:     f.params,
		Schema:     f.schema,
		Importance: f.importance,
		Trees:      f.trees,
		Fitted:     true,
	})
}

// Load restores a forest written by Save. The stored schema must equal expected,
// otherwise models.ErrSchemaMismatch is returned.
func Load(r io.Reader, expected features.Schema, logger *zap.Logger) (*Forest, error) {
	var st forestState
	if err := artifact.Decode(r, ArtifactKind, &st); err != nil {
		return nil, err
	}

	if !st.Fitted || len(st.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest artifact holds no trees", models.ErrCorruptArtifact)
	}
	if len(st.Schema) == 0 || len(st.Importance) != len(st.Schema) {
		return nil, fmt.Errorf("%w: forest artifact schema and importance disagree", models.ErrCorruptArtifact)
	}
	for i, t := range st.Trees {
		if err := validateTree(t, len(st.Schema)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", models.ErrCorruptArtifact, i, err)
		}
	}

	if err := expected.Check(st.Schema); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Forest{
		params:     st.Params,
		schema:     features.Schema(st.Schema),
		trees:      st.Trees,
		importance: st.Importance,
		logger:     logger,
	}, nil
}

func validateTree(t *tree, nFeatures int) error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			if math.IsNaN(n.Value) {
				return fmt.Errorf("node %d has no value", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}
