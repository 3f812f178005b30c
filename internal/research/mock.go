package research

import (
	"context"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// MockProvider implements domain.ResearchProvider without calling an
// external search/answer API, for local runs without a RESEARCH_API_KEY.
// Every call reports zero cost. Search returns opts.NumResults synthetic
// hits built from the query string (one when NumResults is not positive)
// and GetContents returns one hit per URL, enough for the orchestrator's research stage and
// the verifier's grounding check to exercise their real logic end to end.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Search(ctx context.Context, query string, opts domain.SearchOptions) (domain.SearchResult, error) {
	n := opts.NumResults
	if n <= 0 {
		n = 1
	}
	hits := make([]domain.SearchHit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, domain.SearchHit{
			URL:     fmt.Sprintf("mock://search/%d", i),
			Title:   fmt.Sprintf("mock result %d for %q", i, query),
			Summary: fmt.Sprintf("synthetic neutral summary for %q", query),
		})
	}
	return domain.SearchResult{Results: hits}, nil
}

func (p *MockProvider) GetContents(ctx context.Context, urls []string, opts domain.ContentOptions) (domain.ContentResult, error) {
	hits := make([]domain.SearchHit, 0, len(urls))
	for _, u := range urls {
		hits = append(hits, domain.SearchHit{URL: u, Text: "synthetic page text", Summary: "synthetic summary"})
	}
	return domain.ContentResult{Contents: hits}, nil
}

func (p *MockProvider) FindSimilar(ctx context.Context, url string, opts domain.SearchOptions) (domain.SearchResult, error) {
	return p.Search(ctx, "similar:"+url, opts)
}

func (p *MockProvider) Answer(ctx context.Context, question string, opts domain.SearchOptions) (domain.AnswerResult, error) {
	return domain.AnswerResult{Answer: "synthetic answer for: " + question}, nil
}

func (p *MockProvider) StartResearchTask(ctx context.Context, instructions, model string, outputSchema []byte) (string, error) {
	return "mock-task-1", nil
}

func (p *MockProvider) PollResearchTask(ctx context.Context, taskID string) (domain.ResearchTaskStatus, error) {
	return domain.ResearchTaskStatus{Status: "completed", Output: []byte(`{"summary":"synthetic deep research output"}`)}, nil
}
