package models

import "time"

// PageStatus tracks a page through the crawl lifecycle.
type PageStatus string

const (
	StatusPending PageStatus = "pending"
	StatusFetched PageStatus = "fetched"
	StatusFailed  PageStatus = "failed"
	StatusSkipped PageStatus = "skipped"
)

// LinkKind classifies an extracted reference.
type LinkKind string

const (
	KindHyperlink  LinkKind = "hyperlink"
	KindAsset      LinkKind = "asset"
	KindScript     LinkKind = "script"
	KindStylesheet LinkKind = "stylesheet"
)

// MimeClass is a coarse asset classification.
type MimeClass string

const (
	MimeImage MimeClass = "image"
	MimeCSS   MimeClass = "css"
	MimeJS    MimeClass = "js"
	MimeOther MimeClass = "other"
)

// Link is a resolved reference from one page to another URL.
// Immutable once created.
type Link struct {
	SourceURL string   `json:"source_url"`
	TargetURL string   `json:"target_url"`
	Kind      LinkKind `json:"kind"`
}

// AssetRef points at a non-HTML resource referenced by a page.
// LocalPath is assigned by storage when the asset is persisted.
type AssetRef struct {
	URL       string    `json:"url"`
	MimeClass MimeClass `json:"mime_class"`
	LocalPath string    `json:"local_path,omitempty"`
}

// ContentMetrics are coarse size measures used in similarity scoring.
type ContentMetrics struct {
	TextLength int `json:"text_length"`
	BlockCount int `json:"block_count"`
	FormCount  int `json:"form_count"`
}

// FeatureVector is a fixed-shape structural summary of a page's DOM.
// It is derived purely from the parsed tree and never mutated after
// computation.
type FeatureVector struct {
	TagFrequency    map[string]int `json:"tag_frequency"`
	ClassSignature  []string       `json:"class_signature"`
	IDSignature     []string       `json:"id_signature"`
	LayoutSignature string         `json:"layout_signature"`
	ComponentCount  int            `json:"component_count"`
	Metrics         ContentMetrics `json:"content_metrics"`
}

// Page represents one crawled URL. The canonical URL is the unique key
// within a run; Aliases holds request URLs that redirected here.
type Page struct {
	URL          string         `json:"url"`
	Aliases      []string       `json:"aliases,omitempty"`
	Depth        int            `json:"depth"`
	Status       PageStatus     `json:"status"`
	StatusCode   int            `json:"status_code,omitempty"`
	Title        string         `json:"title,omitempty"`
	RawHTML      string         `json:"raw_html,omitempty"`
	Links        []Link         `json:"links,omitempty"`
	Assets       []AssetRef     `json:"assets,omitempty"`
	Features     *FeatureVector `json:"features,omitempty"`
	ClusterID    int            `json:"cluster_id,omitempty"`
	FetchedAt    time.Time      `json:"fetched_at,omitempty"`
	ResponseTime int64          `json:"response_time_ms,omitempty"`
	Attempts     int            `json:"attempts,omitempty"`
	FailReason   string         `json:"fail_reason,omitempty"`
}

// Cluster groups pages judged structurally similar enough to share a
// template. Clusters are replaced wholesale by each clustering run.
type Cluster struct {
	ID                int      `json:"id"`
	MemberURLs        []string `json:"member_urls"`
	CentroidURL       string   `json:"centroid_url"`
	IntraSimilarity   float64  `json:"intra_similarity_mean"`
	DominantLayoutSig string   `json:"dominant_layout_signature,omitempty"`
}

// Occurrence records one appearance of a component signature.
type Occurrence struct {
	URL     string `json:"url"`
	DOMPath string `json:"dom_path"`
}

// ComponentSignature is a content-stripped structural digest of a DOM
// subtree found on at least two distinct pages.
type ComponentSignature struct {
	Hash            string       `json:"hash"`
	TagPath         string       `json:"tag_path"`
	Classes         []string     `json:"classes,omitempty"`
	ExemplarSnippet string       `json:"exemplar_snippet,omitempty"`
	Occurrences     []Occurrence `json:"occurrences"`
	VariantGroup    int          `json:"variant_group,omitempty"`
}

// AnalysisResult bundles the output of one analysis pass over a closed
// page set.
type AnalysisResult struct {
	Threshold  float64              `json:"threshold"`
	Clusters   []Cluster            `json:"clusters"`
	Components []ComponentSignature `json:"components"`
}

// RunSummary aggregates crawl outcome counts by category.
type RunSummary struct {
	SeedURL     string        `json:"seed_url"`
	Fetched     int           `json:"fetched"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Transient   int           `json:"transient_errors"`
	ParseErrors int           `json:"parse_errors"`
	ByDepth     map[int]int   `json:"pages_by_depth"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// FailureRate returns the failed fraction of all attempted pages.
func (s *RunSummary) FailureRate() float64 {
	total := s.Fetched + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(total)
}

// CrawlResult is what a completed (or cancelled) run hands to storage
// and reporting.
type CrawlResult struct {
	Pages    []*Page         `json:"pages"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Summary  *RunSummary     `json:"summary,omitempty"`
}
