package rerank

import (
	"sort"
	"strings"
	"time"
)

// signal weights (spec §4.7); they sum to 1.0 so the weighted sum is
// already normalized and needs no further division.
const (
	weightVectorScore    = 0.40
	weightQueryOverlap   = 0.35
	weightOriginDiversity = 0.15
	weightContentLength  = 0.10
)

// Config configures a Reranker.
type Config struct {
	// FloorScore rejects candidates scoring below it. Default 0.1.
	FloorScore float64
}

// SetDefaults fills unset fields with the reranker's defaults.
func (c *Config) SetDefaults() {
	if c.FloorScore <= 0 {
		c.FloorScore = 0.1
	}
}

// Result is the outcome of a Rerank call.
type Result struct {
	Candidates       []*Candidate
	TotalRecalled    int
	DuplicatesRemoved int
	ElapsedMS        float64
}

// Top returns the first candidate, or nil if Candidates is empty.
func (r *Result) Top() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0]
}

// Reranker is the engine's single cross-source reranker.
type Reranker struct {
	cfg Config
}

// New creates a Reranker from cfg.
func New(cfg Config) *Reranker {
	cfg.SetDefaults()
	return &Reranker{cfg: cfg}
}

// Rerank runs the five-step pipeline: dedup by fingerprint, weighted
// multi-signal scoring, floor filter, sort + truncate to topK, and stats.
// elapsed is supplied by the caller (the package does not read the clock
// directly, so callers driving deterministic tests can pass a fixed
// duration).
func (rr *Reranker) Rerank(candidates []*Candidate, query string, topK int, elapsed time.Duration) Result {
	totalRecalled := len(candidates)

	deduped, duplicatesRemoved := dedupeByFingerprint(candidates)

	for i, c := range deduped {
		scores := map[string]float64{
			"vector_score":     clamp01(c.VectorScore),
			"query_overlap":    queryOverlapScore(query, c.Content),
			"origin_diversity": originDiversityScore(deduped[:i], c.Origin),
			"content_length":   contentLengthScore(len(c.Content)),
		}
		c.SignalScores = scores
		c.FinalScore = weightVectorScore*scores["vector_score"] +
			weightQueryOverlap*scores["query_overlap"] +
			weightOriginDiversity*scores["origin_diversity"] +
			weightContentLength*scores["content_length"]
	}

	var surviving []*Candidate
	for _, c := range deduped {
		if c.FinalScore >= rr.cfg.FloorScore {
			surviving = append(surviving, c)
		}
	}

	sort.SliceStable(surviving, func(i, j int) bool {
		return surviving[i].FinalScore > surviving[j].FinalScore
	})
	if topK > 0 && len(surviving) > topK {
		surviving = surviving[:topK]
	}

	return Result{
		Candidates:        surviving,
		TotalRecalled:     totalRecalled,
		DuplicatesRemoved: duplicatesRemoved,
		ElapsedMS:         float64(elapsed.Microseconds()) / 1000.0,
	}
}

// dedupeByFingerprint keeps, per fingerprint, the candidate with the
// larger vector_score, preserving first-seen order among survivors.
func dedupeByFingerprint(candidates []*Candidate) (deduped []*Candidate, duplicatesRemoved int) {
	bestByFingerprint := make(map[string]*Candidate, len(candidates))
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		fp := c.Fingerprint()
		existing, ok := bestByFingerprint[fp]
		if !ok {
			bestByFingerprint[fp] = c
			order = append(order, fp)
			continue
		}
		duplicatesRemoved++
		if c.VectorScore > existing.VectorScore {
			bestByFingerprint[fp] = c
		}
	}

	deduped = make([]*Candidate, 0, len(order))
	for _, fp := range order {
		deduped = append(deduped, bestByFingerprint[fp])
	}
	return deduped, duplicatesRemoved
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// queryOverlapScore is the fraction of query tokens (length >= 2) present
// in lowercased content; 0.5 when the query carries no eligible tokens.
func queryOverlapScore(query, content string) float64 {
	lowerContent := strings.ToLower(content)
	tokens := strings.Fields(strings.ToLower(query))

	eligible := 0
	present := 0
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		eligible++
		if strings.Contains(lowerContent, tok) {
			present++
		}
	}
	if eligible == 0 {
		return 0.5
	}
	return float64(present) / float64(eligible)
}

// originDiversityScore penalises an origin already dominating the pool
// scored so far (candidates preceding this one in dedup order).
func originDiversityScore(poolSoFar []*Candidate, origin Origin) float64 {
	if len(poolSoFar) == 0 {
		return 0.8
	}
	count := 0
	for _, c := range poolSoFar {
		if c.Origin == origin {
			count++
		}
	}
	ratio := float64(count) / float64(len(poolSoFar))
	switch {
	case ratio > 0.7:
		return 0.3
	case ratio > 0.5:
		return 0.6
	default:
		return 0.9
	}
}

// contentLengthScore is a bell-shaped preference peaking over [200, 800]
// characters, ramping up from very short content and decaying past 2000.
func contentLengthScore(n int) float64 {
	switch {
	case n < 50:
		return 0.3 + 0.6*float64(n)/50.0
	case n <= 200:
		return 0.9 + 0.1*float64(n-50)/150.0
	case n <= 800:
		return 1.0
	case n <= 2000:
		return 1.0 - 0.5*float64(n-800)/1200.0
	default:
		over := float64(n-2000) / 2000.0
		score := 0.5 - 0.3*over
		if score < 0.1 {
			score = 0.1
		}
		return score
	}
}
