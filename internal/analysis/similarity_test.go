package analysis

import (
	"math"
	"testing"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/pkg/models"
)

func defaultWeights() config.Weights {
	return config.Default().Weights
}

func vec(tags map[string]int, classes []string, layout string, comps, text, blocks, forms int) *models.FeatureVector {
	return &models.FeatureVector{
		TagFrequency:    tags,
		ClassSignature:  classes,
		LayoutSignature: layout,
		ComponentCount:  comps,
		Metrics: models.ContentMetrics{
			TextLength: text,
			BlockCount: blocks,
			FormCount:  forms,
		},
	}
}

func TestSimilarityReflexive(t *testing.T) {
	vectors := []*models.FeatureVector{
		vec(map[string]int{"div": 4, "p": 2}, []string{"hero", "nav"}, "abc123", 3, 500, 6, 1),
		vec(map[string]int{}, nil, "", 0, 0, 0, 0),
		vec(map[string]int{"span": 1}, []string{"x"}, "layout", 1, 10, 1, 0),
	}
	for i, v := range vectors {
		if got := Similarity(v, v, defaultWeights()); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("vector %d: Similarity(a,a) = %v, want 1.0", i, got)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := vec(map[string]int{"div": 4, "p": 2, "a": 7}, []string{"hero", "nav"}, "l1", 3, 500, 6, 1)
	b := vec(map[string]int{"div": 2, "p": 5}, []string{"nav", "side"}, "l2", 1, 900, 4, 0)

	ab := Similarity(a, b, defaultWeights())
	ba := Similarity(b, a, defaultWeights())
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("asymmetric: %v vs %v", ab, ba)
	}
}

func TestSimilarityBounds(t *testing.T) {
	a := vec(map[string]int{"div": 1}, []string{"a"}, "x", 1, 1, 1, 1)
	b := vec(map[string]int{"table": 9}, []string{"z"}, "y", 50, 99999, 40, 0)

	got := Similarity(a, b, defaultWeights())
	if got < 0 || got > 1 {
		t.Errorf("similarity %v outside [0,1]", got)
	}
}

func TestSimilarityNil(t *testing.T) {
	a := vec(map[string]int{"div": 1}, nil, "", 0, 0, 0, 0)
	if Similarity(a, nil, defaultWeights()) != 0 || Similarity(nil, a, defaultWeights()) != 0 {
		t.Error("nil vector should score 0")
	}
}

func TestSimilarityLayoutWeight(t *testing.T) {
	// Identical except for layout: the difference must equal the layout weight
	a := vec(map[string]int{"div": 3}, []string{"c"}, "same", 2, 100, 3, 0)
	b := vec(map[string]int{"div": 3}, []string{"c"}, "same", 2, 100, 3, 0)
	c := vec(map[string]int{"div": 3}, []string{"c"}, "different", 2, 100, 3, 0)

	w := defaultWeights()
	full := Similarity(a, b, w)
	noLayout := Similarity(a, c, w)
	if math.Abs((full-noLayout)-w.Layout) > 1e-9 {
		t.Errorf("layout mismatch penalty = %v, want %v", full-noLayout, w.Layout)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]int
		want float64
	}{
		{"identical", map[string]int{"div": 2, "p": 1}, map[string]int{"div": 2, "p": 1}, 1},
		{"orthogonal", map[string]int{"div": 1}, map[string]int{"table": 1}, 0},
		{"both empty", map[string]int{}, map[string]int{}, 1},
		{"one empty", map[string]int{"div": 1}, map[string]int{}, 0},
		{"scaled", map[string]int{"div": 1, "p": 1}, map[string]int{"div": 10, "p": 10}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"half", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"both empty", nil, nil, 1},
		{"one empty", []string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("jaccard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountSimilarity(t *testing.T) {
	if got := countSimilarity(0, 0); got != 1 {
		t.Errorf("countSimilarity(0,0) = %v", got)
	}
	if got := countSimilarity(5, 10); got != 0.5 {
		t.Errorf("countSimilarity(5,10) = %v", got)
	}
	if got := countSimilarity(10, 5); got != 0.5 {
		t.Errorf("countSimilarity(10,5) = %v", got)
	}
	if got := countSimilarity(0, 7); got != 0 {
		t.Errorf("countSimilarity(0,7) = %v", got)
	}
}
