package retriever

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/sandevgo/readr/internal/chunker"
	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

// Result carries fetched snippets plus the degraded-mode signal. Degraded
// is not an error: callers must tolerate zero external context.
type Result struct {
	Snippets []core.Snippet
	// Degraded is set when sources failed and the result is stale or
	// empty.
	Degraded bool
	// Stale is set when the snippets were served past their TTL.
	Stale bool
}

// Retriever fetches external snippets with a cache-first, single-flight
// policy. Concurrent fetches for the same normalized query share one
// outstanding call per key.
type Retriever struct {
	sources []core.KnowledgeSource
	cache   *Cache
	store   core.SnippetStore // may be nil
	group   singleflight.Group
}

func New(cache *Cache, store core.SnippetStore, sources ...core.KnowledgeSource) *Retriever {
	return &Retriever{
		sources: sources,
		cache:   cache,
		store:   store,
	}
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// NormalizeQuery folds a query term to its cache key: lowercase,
// punctuation stripped, whitespace collapsed.
func NormalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = nonWordRe.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

// Fetch returns snippets for one query term. Cache hits within TTL are
// served directly; otherwise all sources are consulted under a
// single-flight key. On total source failure the best stale cache entry
// is returned, or an empty degraded result when nothing is cached.
func (r *Retriever) Fetch(ctx context.Context, term string) Result {
	key := NormalizeQuery(term)
	if key == "" {
		return Result{}
	}

	if snippets, fresh, ok := r.cache.Get(key); ok && fresh {
		return Result{Snippets: snippets}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Detach from the caller: another query awaiting this key must
		// not lose the fetch because the first caller cancelled.
		return r.fetchAll(context.WithoutCancel(ctx), key, term), nil
	})
	if err != nil {
		// fetchAll never errors; degradation is carried in the Result.
		return Result{Degraded: true}
	}
	return v.(Result)
}

func (r *Retriever) fetchAll(ctx context.Context, key, term string) Result {
	logger := log.FromCtx(ctx)

	var collected []core.Snippet
	failures := 0
	for _, src := range r.sources {
		snippets, err := src.Search(ctx, term)
		if err != nil {
			failures++
			logger.Warn().Err(err).Str("source", src.Name()).Str("term", term).
				Msg("knowledge source failed")
			continue
		}
		collected = append(collected, snippets...)
	}

	if len(collected) == 0 && failures > 0 {
		// Stale fallback beats nothing.
		if stale, _, ok := r.cache.Get(key); ok && len(stale) > 0 {
			logger.Warn().Str("term", term).Msg("serving stale snippets, sources unavailable")
			return Result{Snippets: stale, Degraded: true, Stale: true}
		}
		if r.store != nil {
			if persisted, err := r.store.LoadSnippets(ctx, key); err == nil && len(persisted) > 0 {
				return Result{Snippets: persisted, Degraded: true, Stale: true}
			}
		}
		logger.Warn().Str("term", term).Msg("no external context available, degraded mode")
		return Result{Degraded: true}
	}

	for i := range collected {
		collected[i].TokenSize = chunker.CountTokens(collected[i].Text)
	}
	sort.SliceStable(collected, func(a, b int) bool {
		return collected[a].Relevance > collected[b].Relevance
	})

	r.cache.Put(key, collected)
	if r.store != nil {
		if err := r.store.SaveSnippets(ctx, key, collected); err != nil {
			logger.Warn().Err(err).Msg("snippet write-through failed")
		}
	}
	return Result{Snippets: collected}
}

// FetchAll merges results for several derived terms, deduplicating by
// source and title, ordered by descending relevance.
func (r *Retriever) FetchAll(ctx context.Context, terms []string, limit int) Result {
	var out Result
	seen := make(map[string]struct{})

	for _, term := range terms {
		res := r.Fetch(ctx, term)
		out.Degraded = out.Degraded || res.Degraded
		out.Stale = out.Stale || res.Stale

		for _, s := range res.Snippets {
			id := s.SourceID + "|" + s.Title
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out.Snippets = append(out.Snippets, s)
		}
	}

	sort.SliceStable(out.Snippets, func(a, b int) bool {
		return out.Snippets[a].Relevance > out.Snippets[b].Relevance
	})
	if limit > 0 && len(out.Snippets) > limit {
		out.Snippets = out.Snippets[:limit]
	}
	return out
}
