package analysis

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// Cluster groups pages by single-linkage connectivity: two pages share a
// cluster when their similarity meets the threshold directly or through a
// chain of such pairs. Only pages with computed features participate;
// callers must pass fetched pages only.
//
// The result is deterministic: members are sorted by URL and cluster IDs
// are assigned by ascending smallest member URL. Each page's ClusterID is
// set as a side effect.
func Cluster(pages []*models.Page, threshold float64, w config.Weights) []models.Cluster {
	eligible := make([]*models.Page, 0, len(pages))
	for _, p := range pages {
		if p.Status == models.StatusFetched && p.Features != nil {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	// Stable input order regardless of fetch completion order
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].URL < eligible[j].URL })

	n := len(eligible)
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		sims[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := Similarity(eligible[i].Features, eligible[j].Features, w)
			sims[i][j] = s
			sims[j][i] = s
		}
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sims[i][j] >= threshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	clusters := make([]models.Cluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, buildCluster(eligible, members, sims))
	}

	// ID order: ascending smallest member URL. Members are already
	// sorted, so index 0 is the smallest.
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].MemberURLs[0] < clusters[j].MemberURLs[0]
	})
	for i := range clusters {
		clusters[i].ID = i + 1
		for _, u := range clusters[i].MemberURLs {
			for _, p := range eligible {
				if p.URL == u {
					p.ClusterID = clusters[i].ID
				}
			}
		}
	}

	log.Debug().
		Int("pages", n).
		Int("clusters", len(clusters)).
		Float64("threshold", threshold).
		Msg("Clustering complete")

	return clusters
}

// buildCluster assembles one cluster from member indices: sorted URLs,
// medoid centroid, and mean pairwise similarity.
func buildCluster(pages []*models.Page, members []int, sims [][]float64) models.Cluster {
	sort.Ints(members)

	urls := make([]string, len(members))
	for i, idx := range members {
		urls[i] = pages[idx].URL
	}
	sort.Strings(urls)

	// Medoid: member with the highest mean similarity to the others.
	// Ties break toward the lexicographically smaller URL via the sorted
	// member order.
	medoid := members[0]
	bestMean := -1.0
	var pairSum float64
	pairs := 0
	for _, i := range members {
		var sum float64
		for _, j := range members {
			if i == j {
				continue
			}
			sum += sims[i][j]
			if i < j {
				pairSum += sims[i][j]
				pairs++
			}
		}
		mean := 1.0
		if len(members) > 1 {
			mean = sum / float64(len(members)-1)
		}
		if mean > bestMean {
			bestMean = mean
			medoid = i
		}
	}

	intra := 1.0
	if pairs > 0 {
		intra = pairSum / float64(pairs)
	}

	return models.Cluster{
		MemberURLs:        urls,
		CentroidURL:       pages[medoid].URL,
		IntraSimilarity:   intra,
		DominantLayoutSig: pages[medoid].Features.LayoutSignature,
	}
}

// unionFind is a minimal disjoint-set with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Smaller root wins so results do not depend on union order
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
