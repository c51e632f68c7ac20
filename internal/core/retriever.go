// ABOUTME: Retriever selects the passages handed to the answer generator
// ABOUTME: L2 candidates re-ranked by maximal marginal relevance, optionally fused with BM25 hits
package core

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/models"
)

// rrfK is the reciprocal-rank-fusion constant
const rrfK = 60

// QueryEmbedder turns a question into a vector in the index space
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StoreSource hands out the active index, building it if needed
type StoreSource interface {
	Get(ctx context.Context) (*index.Store, error)
}

// RetrieveOptions controls a single retrieval
type RetrieveOptions struct {
	SearchType string
	K          int
	FetchK     int
	LambdaMult float64
}

// DefaultRetrieveOptions returns mmr with k=3, fetch_k=10, lambda_mult=1.0
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		SearchType: config.SearchMMR,
		K:          3,
		FetchK:     10,
		LambdaMult: 1.0,
	}
}

// RetrieveOptionsFrom maps the retriever section of the config
func RetrieveOptionsFrom(cfg config.RetrieverConfig) RetrieveOptions {
	return RetrieveOptions{
		SearchType: cfg.SearchType,
		K:          cfg.K,
		FetchK:     cfg.FetchK,
		LambdaMult: cfg.LambdaMult,
	}.withDefaults()
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	def := DefaultRetrieveOptions()
	if o.SearchType == "" {
		o.SearchType = def.SearchType
	}
	if o.K <= 0 {
		o.K = def.K
	}
	if o.FetchK <= 0 {
		o.FetchK = def.FetchK
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	o.LambdaMult = math.Max(0, math.Min(1, o.LambdaMult))
	return o
}

// Retriever runs searches against the active index
type Retriever struct {
	embedder QueryEmbedder
	stores   StoreSource
	defaults RetrieveOptions
	logger   *log.Logger
}

// NewRetriever creates a retriever with default options for calls that pass none
func NewRetriever(embedder QueryEmbedder, stores StoreSource, defaults RetrieveOptions, l *log.Logger) *Retriever {
	r := &Retriever{
		embedder: embedder,
		stores:   stores,
		defaults: defaults.withDefaults(),
		logger:   logger.OrDiscard(l),
	}
	if r.defaults.SearchType != config.SearchSimilarity && r.defaults.LambdaMult == 1.0 {
		r.logger.Debug("lambda_mult is 1.0, mmr ranks by relevance only")
	}
	return r
}

// Defaults returns the options used by Retrieve
func (r *Retriever) Defaults() RetrieveOptions {
	return r.defaults
}

// Retrieve returns up to k passages for the query using the default options
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	return r.RetrieveWith(ctx, query, r.defaults)
}

// RetrieveWith returns up to opts.K passages for the query.
// An empty index yields no results and no error.
func (r *Retriever) RetrieveWith(ctx context.Context, query string, opts RetrieveOptions) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	store, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	if store.Len() == 0 {
		r.logger.Debug("index is empty, nothing to retrieve")
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var results []models.SearchResult
	switch opts.SearchType {
	case config.SearchSimilarity:
		results, err = similarity(store, vec, opts.K)
	case config.SearchHybrid:
		results, err = hybrid(store, vec, query, opts)
	default:
		results, err = mmr(store, vec, opts.FetchK, opts.K, opts.LambdaMult)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved passages", "type", opts.SearchType, "k", opts.K, "fetch_k", opts.FetchK, "results", len(results))
	return results, nil
}

func similarity(store *index.Store, vec []float32, k int) ([]models.SearchResult, error) {
	hits, err := store.Search(vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = models.SearchResult{
			Chunk:    h.Chunk,
			Distance: h.Distance,
			Score:    index.CosineSimilarity(vec, h.Vector),
			Rank:     i + 1,
		}
	}
	return out, nil
}

func mmr(store *index.Store, vec []float32, fetchK, k int, lambda float64) ([]models.SearchResult, error) {
	hits, err := store.Search(vec, fetchK)
	if err != nil {
		return nil, err
	}

	candidates := make([][]float32, len(hits))
	for i, h := range hits {
		candidates[i] = h.Vector
	}

	picks := MaximalMarginalRelevance(vec, candidates, k, lambda)
	out := make([]models.SearchResult, len(picks))
	for i, p := range picks {
		out[i] = models.SearchResult{
			Chunk:    hits[p].Chunk,
			Distance: hits[p].Distance,
			Score:    index.CosineSimilarity(vec, hits[p].Vector),
			Rank:     i + 1,
		}
	}
	return out, nil
}

func hybrid(store *index.Store, vec []float32, query string, opts RetrieveOptions) ([]models.SearchResult, error) {
	dense, err := mmr(store, vec, opts.FetchK, opts.FetchK, opts.LambdaMult)
	if err != nil {
		return nil, err
	}

	kw, err := store.Keywords()
	if err != nil {
		return nil, err
	}
	ids, err := kw.Search(query, opts.FetchK)
	if err != nil {
		return nil, err
	}

	lexical := make([]models.SearchResult, 0, len(ids))
	for i, id := range ids {
		c, ok := store.Chunk(id)
		if !ok {
			continue
		}
		res := models.SearchResult{Chunk: c, Rank: i + 1}
		if v, ok := store.Vector(id); ok {
			res.Distance = index.Distance(vec, v)
		}
		lexical = append(lexical, res)
	}

	return FuseRRF(dense, lexical, opts.K), nil
}

// MaximalMarginalRelevance picks up to k candidate positions. The first pick is the
// candidate most similar to the query; each further pick maximises
// lambda*sim(query) - (1-lambda)*max sim(selected). Ties keep the earlier candidate.
func MaximalMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float64) []int {
	n := min(k, len(candidates))
	if n <= 0 {
		return nil
	}

	toQuery := make([]float64, len(candidates))
	best := 0
	for i, c := range candidates {
		toQuery[i] = index.CosineSimilarity(query, c)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	picks := []int{best}
	selected := map[int]bool{best: true}
	for len(picks) < n {
		bestScore := math.Inf(-1)
		add := -1
		for i, c := range candidates {
			if selected[i] {
				continue
			}
			redundancy := math.Inf(-1)
			for _, p := range picks {
				redundancy = math.Max(redundancy, index.CosineSimilarity(c, candidates[p]))
			}
			score := lambda*toQuery[i] - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				add = i
			}
		}
		if add < 0 {
			// every remaining score is NaN
			break
		}
		picks = append(picks, add)
		selected[add] = true
	}
	return picks
}

// FuseRRF merges ranked lists by reciprocal rank fusion and keeps the top k.
// Scores become the fused score; equal scores keep first-seen order.
func FuseRRF(a, b []models.SearchResult, k int) []models.SearchResult {
	type agg struct {
		item  models.SearchResult
		score float64
		order int
	}
	m := map[string]*agg{}
	add := func(list []models.SearchResult) {
		for _, r := range list {
			x, ok := m[r.Chunk.ID]
			if !ok {
				x = &agg{item: r, order: len(m)}
				m[r.Chunk.ID] = x
			}
			x.score += 1.0 / float64(rrfK+r.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	slices.SortFunc(items, func(x, y *agg) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		return cmp.Compare(x.order, y.order)
	})

	out := make([]models.SearchResult, 0, min(k, len(items)))
	for i := 0; i < min(k, len(items)); i++ {
		r := items[i].item
		r.Score = items[i].score
		r.Rank = i + 1
		out = append(out, r)
	}
	return out
}

// JoinContext concatenates passage texts, separated by blank lines
func JoinContext(results []models.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}
