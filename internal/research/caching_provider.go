package research

import (
	"context"
	"time"

	"github.com/aristath/marketedge/internal/domain"
)

// DefaultTTL is how long a cached Search/GetContents/FindSimilar/Answer
// response is considered fresh. Research results go stale slowly relative
// to market prices, so this is generous compared to a price cache.
const DefaultTTL = 15 * time.Minute

// CachingProvider wraps a domain.ResearchProvider, caching the cost-bearing
// read operations (Search, GetContents, FindSimilar, Answer) so an
// orchestrator re-run against the same ticker within the TTL window
// doesn't re-spend budget on an identical query. StartResearchTask and
// PollResearchTask are passed through uncached: a task's poll result is
// inherently time-varying until it completes.
type CachingProvider struct {
	inner domain.ResearchProvider
	cache *Cache
	ttl   time.Duration
}

func NewCachingProvider(inner domain.ResearchProvider, cache *Cache) *CachingProvider {
	return &CachingProvider{inner: inner, cache: cache, ttl: DefaultTTL}
}

type searchRequest struct {
	Query string
	Opts  domain.SearchOptions
}

func (p *CachingProvider) Search(ctx context.Context, query string, opts domain.SearchOptions) (domain.SearchResult, error) {
	key, err := Key("search", searchRequest{Query: query, Opts: opts})
	if err != nil {
		return p.inner.Search(ctx, query, opts)
	}
	var cached domain.SearchResult
	if p.cache.Get(key, &cached) {
		return cached, nil
	}
	result, err := p.inner.Search(ctx, query, opts)
	if err != nil {
		return result, err
	}
	_ = p.cache.Set(key, result, p.ttl)
	return result, nil
}

type contentsRequest struct {
	URLs []string
	Opts domain.ContentOptions
}

func (p *CachingProvider) GetContents(ctx context.Context, urls []string, opts domain.ContentOptions) (domain.ContentResult, error) {
	key, err := Key("get_contents", contentsRequest{URLs: urls, Opts: opts})
	if err != nil {
		return p.inner.GetContents(ctx, urls, opts)
	}
	var cached domain.ContentResult
	if p.cache.Get(key, &cached) {
		return cached, nil
	}
	result, err := p.inner.GetContents(ctx, urls, opts)
	if err != nil {
		return result, err
	}
	_ = p.cache.Set(key, result, p.ttl)
	return result, nil
}

func (p *CachingProvider) FindSimilar(ctx context.Context, url string, opts domain.SearchOptions) (domain.SearchResult, error) {
	key, err := Key("find_similar", searchRequest{Query: url, Opts: opts})
	if err != nil {
		return p.inner.FindSimilar(ctx, url, opts)
	}
	var cached domain.SearchResult
	if p.cache.Get(key, &cached) {
		return cached, nil
	}
	result, err := p.inner.FindSimilar(ctx, url, opts)
	if err != nil {
		return result, err
	}
	_ = p.cache.Set(key, result, p.ttl)
	return result, nil
}

type answerRequest struct {
	Question string
	Opts     domain.SearchOptions
}

func (p *CachingProvider) Answer(ctx context.Context, question string, opts domain.SearchOptions) (domain.AnswerResult, error) {
	key, err := Key("answer", answerRequest{Question: question, Opts: opts})
	if err != nil {
		return p.inner.Answer(ctx, question, opts)
	}
	var cached domain.AnswerResult
	if p.cache.Get(key, &cached) {
		return cached, nil
	}
	result, err := p.inner.Answer(ctx, question, opts)
	if err != nil {
		return result, err
	}
	_ = p.cache.Set(key, result, p.ttl)
	return result, nil
}

func (p *CachingProvider) StartResearchTask(ctx context.Context, instructions, model string, outputSchema []byte) (string, error) {
	return p.inner.StartResearchTask(ctx, instructions, model, outputSchema)
}

func (p *CachingProvider) PollResearchTask(ctx context.Context, taskID string) (domain.ResearchTaskStatus, error) {
	return p.inner.PollResearchTask(ctx, taskID)
}
