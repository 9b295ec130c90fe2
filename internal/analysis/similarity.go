package analysis

import (
	"math"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// Similarity scores two feature vectors in [0,1] as a weighted sum of
// tag-frequency cosine, class-signature Jaccard, layout exact match,
// component-count similarity, and content-metric similarity. It is
// reflexive (Similarity(a,a) == 1) and symmetric.
func Similarity(a, b *models.FeatureVector, w config.Weights) float64 {
	if a == nil || b == nil {
		return 0
	}

	score := w.Tags*cosine(a.TagFrequency, b.TagFrequency) +
		w.Classes*jaccard(a.ClassSignature, b.ClassSignature) +
		w.Layout*exactMatch(a.LayoutSignature, b.LayoutSignature) +
		w.Component*countSimilarity(a.ComponentCount, b.ComponentCount) +
		w.Content*contentSimilarity(a.Metrics, b.Metrics)

	// Guard against float drift pushing a self-comparison past 1
	return math.Min(1, math.Max(0, score))
}

// cosine is the cosine similarity of two tag-count vectors. Two empty
// vectors are identical by definition.
func cosine(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for tag, ca := range a {
		normA += float64(ca) * float64(ca)
		if cb, ok := b[tag]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	for _, cb := range b {
		normB += float64(cb) * float64(cb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// jaccard is set intersection over union of two sorted token slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func exactMatch(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}

// countSimilarity compares two counts as min/max; two zero counts are
// identical.
func countSimilarity(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo / hi
}

// contentSimilarity averages the ratio similarity of text length, block
// count, and form count.
func contentSimilarity(a, b models.ContentMetrics) float64 {
	return (countSimilarity(a.TextLength, b.TextLength) +
		countSimilarity(a.BlockCount, b.BlockCount) +
		countSimilarity(a.FormCount, b.FormCount)) / 3
}
