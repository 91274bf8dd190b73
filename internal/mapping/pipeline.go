package mapping

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/embedding"
	"github.com/finlens/metricmap/internal/vocab"
)

// ErrMappingDisabled is returned when AI metric mapping is switched off in
// configuration. Callers render it as a structured error payload, not a crash.
var ErrMappingDisabled = errors.New("metric mapping is disabled in configuration")

// ErrNoLabels is returned for an empty label list.
var ErrNoLabels = errors.New("no source labels provided")

// Suggester provides lexical fallback suggestions for labels that could not
// be mapped, to aid manual review.
type Suggester interface {
	Suggest(label string, limit int) []string
}

// Pipeline runs the full mapping flow: resolve source embeddings, resolve
// the canonical vocabulary (embedded once per process, cached thereafter),
// match by cosine similarity, classify into confidence bands.
//
// A pipeline holds no per-request mutable state, so one instance serves
// concurrent requests; the cache and health record synchronize internally.
type Pipeline struct {
	resolver  *embedding.Resolver
	vocab     *vocab.Vocabulary
	cfg       *config.MappingConfig
	suggester Suggester // optional
	logger    *zap.Logger
}

// NewPipeline creates a mapping pipeline. suggester may be nil.
func NewPipeline(resolver *embedding.Resolver, v *vocab.Vocabulary, cfg *config.MappingConfig, suggester Suggester, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver:  resolver,
		vocab:     v,
		cfg:       cfg,
		suggester: suggester,
		logger:    logger,
	}
}

// Resolver returns the underlying embedding resolver (for status reporting).
func (p *Pipeline) Resolver() *embedding.Resolver {
	return p.resolver
}

// Vocabulary returns the canonical vocabulary holder.
func (p *Pipeline) Vocabulary() *vocab.Vocabulary {
	return p.vocab
}

// MapMetrics maps source labels onto the canonical vocabulary. It always
// returns a structured result for valid input: labels that no tier could
// embed, or that matched no target above the similarity threshold, land in
// RequiresManual rather than producing an error. Partial success is the
// expected common case. Cache writes that happened before a failure are
// never rolled back.
func (p *Pipeline) MapMetrics(ctx context.Context, labels []string) (*Result, error) {
	start := time.Now()
	requestID := uuid.NewString()

	state := StateIdle
	advance := func(next State) {
		state = next
		p.logger.Debug("mapping state",
			zap.String("request_id", requestID),
			zap.String("state", string(state)),
		)
	}

	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	if !p.cfg.MappingEnabled() {
		advance(StateFailed)
		return nil, ErrMappingDisabled
	}

	advance(StateEmbeddingSources)
	srcRes := p.resolver.ResolveBatch(ctx, labels, p.cfg.ResolveWorkers)
	var srcVecs [][]float32
	for _, r := range srcRes {
		if r.OK {
			srcVecs = append(srcVecs, r.Vector)
		}
	}

	advance(StateEmbeddingTargets)
	metrics := p.vocab.Metrics()
	tgtRes := p.resolver.ResolveBatch(ctx, metrics, p.cfg.ResolveWorkers)
	var tgtVecs [][]float32
	var tgtNames []string
	for i, r := range tgtRes {
		if r.OK {
			tgtVecs = append(tgtVecs, r.Vector)
			tgtNames = append(tgtNames, metrics[i])
		}
	}

	advance(StateMatching)
	var matches []Match
	if len(srcVecs) > 0 && len(tgtVecs) > 0 {
		matches = BestMatches(srcVecs, tgtVecs, p.cfg.SimilarityThreshold)
	}

	advance(StateClassifying)
	candidates := make([]Candidate, len(labels))
	vi := 0
	for i, r := range srcRes {
		cand := Candidate{Source: labels[i]}
		if r.OK && len(matches) > 0 {
			m := matches[vi]
			vi++
			cand.Score = m.Score
			if m.Matched && m.TargetIndex >= 0 {
				cand.Target = tgtNames[m.TargetIndex]
				cand.Matched = true
			}
		}
		candidates[i] = cand
	}

	result := Classify(candidates, Thresholds{
		High:   p.cfg.Confidence.High,
		Medium: p.cfg.Confidence.Medium,
		Low:    p.cfg.Confidence.Low,
	})
	result.RequestID = requestID
	result.Method = methodTag(srcRes, tgtRes)
	result.QueryTime = time.Since(start).Milliseconds()

	if p.suggester != nil && p.cfg.SuggestionsEnabled() && len(result.RequiresManual) > 0 {
		result.Suggestions = make(map[string][]string)
		for _, label := range result.RequiresManual {
			if hints := p.suggester.Suggest(label, p.cfg.SuggestionLimit); len(hints) > 0 {
				result.Suggestions[label] = hints
			}
		}
		if len(result.Suggestions) == 0 {
			result.Suggestions = nil
		}
	}

	advance(StateDone)
	p.logger.Info("mapping completed",
		zap.String("request_id", requestID),
		zap.Int("labels", len(labels)),
		zap.Int("high", len(result.HighConfidence)),
		zap.Int("medium", len(result.MediumConfidence)),
		zap.Int("low", len(result.LowConfidence)),
		zap.Int("manual", len(result.RequiresManual)),
		zap.String("method", result.Method),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// methodTag tallies which inference path produced the majority of freshly
// inferred embeddings across the batch. All-cache batches report "cache";
// batches where nothing resolved report "none".
func methodTag(groups ...[]embedding.Resolution) string {
	var remote, local, hits int
	for _, rs := range groups {
		for _, r := range rs {
			switch r.Origin {
			case embedding.OriginRemote:
				remote++
			case embedding.OriginLocal:
				local++
			case embedding.OriginCache, embedding.OriginStore:
				hits++
			}
		}
	}
	switch {
	case local > remote:
		return MethodLocal
	case remote > 0:
		return MethodRemote
	case hits > 0:
		return MethodCache
	default:
		return MethodNone
	}
}
