package analysis

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/sitegrain/sitegrain/internal/config"
	"github.com/sitegrain/sitegrain/pkg/models"
)

// Scanner is the component-detection half of the pipeline. Satisfied by
// component.Detector; kept as an interface so analysis does not import
// its consumer.
type Scanner interface {
	Scan(pageURL string, root *html.Node) int
	Components() []models.ComponentSignature
}

// Analyze runs the full structural pass over a closed page set: feature
// extraction, component scanning, then clustering. Only Fetched pages
// participate; Failed and Skipped pages are ignored. Pages gain their
// Features and ClusterID as a side effect.
func Analyze(ctx context.Context, cfg *config.Config, pages []*models.Page, scanner Scanner) (*models.AnalysisResult, error) {
	fetched := make([]*models.Page, 0, len(pages))
	for _, p := range pages {
		if p.Status == models.StatusFetched && p.RawHTML != "" {
			fetched = append(fetched, p)
		}
	}
	if len(fetched) == 0 {
		return &models.AnalysisResult{Threshold: cfg.Threshold}, nil
	}

	// Parse and extract in parallel; trees are kept for the component
	// scan that follows.
	roots := make([]*html.Node, len(fetched))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range fetched {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			root, err := html.Parse(strings.NewReader(p.RawHTML))
			if err != nil {
				// Tolerant parser; a hard failure here means the
				// stored HTML is unusable for analysis.
				return fmt.Errorf("parse %s: %w", p.URL, err)
			}
			features := Extract(root)
			mu.Lock()
			roots[i] = root
			p.Features = features
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The detector serializes its own state, so scanning stays
	// single-threaded. Component counts must land before clustering
	// since they are a similarity term.
	for i, p := range fetched {
		p.Features.ComponentCount = scanner.Scan(p.URL, roots[i])
	}
	components := scanner.Components()

	clusters := Cluster(fetched, cfg.Threshold, cfg.Weights)

	log.Info().
		Int("pages", len(fetched)).
		Int("clusters", len(clusters)).
		Int("components", len(components)).
		Msg("Analysis complete")

	return &models.AnalysisResult{
		Threshold:  cfg.Threshold,
		Clusters:   clusters,
		Components: components,
	}, nil
}
