package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/marketedge/internal/domain"
)

// selectResearchMode walks modeOrder from requested toward cheaper modes
// until it finds one whose estimate fits inside remaining budget. This is
// the hard budget gate from spec.md §4.L: the check happens before any
// call is issued, never after.
func selectResearchMode(requested Mode, remaining float64) (Mode, error) {
	start := indexOfMode(requested)
	for i := start; i < len(modeOrder); i++ {
		m := modeOrder[i]
		if modeCostEstimate[m] <= remaining {
			return m, nil
		}
	}
	return "", &domain.BudgetExceededError{
		Step:             "research",
		EstimatedCostUSD: modeCostEstimate[ModeFast],
		RemainingUSD:     remaining,
	}
}

func indexOfMode(m Mode) int {
	for i, mm := range modeOrder {
		if mm == m {
			return i
		}
	}
	return len(modeOrder) - 1
}

// runResearch gathers whatever evidence the selected mode provides,
// downshifting from the requested mode first if the budget requires it.
func (o *Orchestrator) runResearch(ctx context.Context, market domain.Market, requestedMode Mode, remaining *float64) (researchBundle, error) {
	mode, err := selectResearchMode(requestedMode, *remaining)
	if err != nil {
		return researchBundle{}, err
	}
	if mode != requestedMode {
		o.log.Info().Str("ticker", market.Ticker).Str("requested", string(requestedMode)).Str("used", string(mode)).
			Msg("downshifted research mode to fit remaining budget")
	}

	var bundle researchBundle
	bundle.modeUsed = mode

	switch mode {
	case ModeFast:
		result, err := o.research.Search(ctx, market.Title, domain.SearchOptions{NumResults: 3})
		if err != nil {
			return researchBundle{}, err
		}
		bundle.citations = citationURLs(result.Results)
		bundle.costUSD = result.CostDollars

	case ModeStandard:
		result, err := o.research.Search(ctx, market.Title, domain.SearchOptions{NumResults: 10, WantText: true})
		if err != nil {
			return researchBundle{}, err
		}
		bundle.costUSD += result.CostDollars

		topURLs := citationURLs(topHits(result.Results, 5))
		contents, err := o.research.GetContents(ctx, topURLs, domain.ContentOptions{WantText: true, WantSummary: true})
		if err != nil {
			return researchBundle{}, err
		}
		bundle.costUSD += contents.CostDollars
		bundle.citations = topURLs
		bundle.factors = factorsFromHits(contents.Contents)

		answer, err := o.research.Answer(ctx, standardAnswerQuestion(market), domain.SearchOptions{NumResults: 5})
		if err == nil {
			bundle.costUSD += answer.CostDollars
			bundle.citations = append(bundle.citations, answer.Citations...)
		} else {
			o.log.Warn().Err(err).Str("ticker", market.Ticker).Msg("standard-mode answer call failed, continuing with search results alone")
		}

	case ModeDeep:
		taskID, err := o.research.StartResearchTask(ctx, deepResearchInstructions(market), "", nil)
		if err != nil {
			return researchBundle{}, err
		}
		status, err := o.pollDeepResearchTask(ctx, taskID)
		if err != nil {
			return researchBundle{}, err
		}
		bundle.costUSD = status.CostDollars
	}

	*remaining -= bundle.costUSD
	return bundle, nil
}

func (o *Orchestrator) pollDeepResearchTask(ctx context.Context, taskID string) (domain.ResearchTaskStatus, error) {
	deadline := time.Now().Add(deepResearchDeadline)
	ticker := time.NewTicker(deepResearchPollInterval)
	defer ticker.Stop()

	for {
		status, err := o.research.PollResearchTask(ctx, taskID)
		if err != nil {
			return domain.ResearchTaskStatus{}, err
		}
		switch status.Status {
		case "completed":
			return status, nil
		case "failed":
			return domain.ResearchTaskStatus{}, fmt.Errorf("orchestrator: deep research task %s failed", taskID)
		}
		if time.Now().After(deadline) {
			return domain.ResearchTaskStatus{}, fmt.Errorf("orchestrator: deep research task %s did not complete within %s", taskID, deepResearchDeadline)
		}
		select {
		case <-ctx.Done():
			return domain.ResearchTaskStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func citationURLs(hits []domain.SearchHit) []string {
	urls := make([]string, 0, len(hits))
	for _, h := range hits {
		urls = append(urls, h.URL)
	}
	return urls
}

func topHits(hits []domain.SearchHit, n int) []domain.SearchHit {
	if len(hits) <= n {
		return hits
	}
	return hits[:n]
}

func factorsFromHits(hits []domain.SearchHit) []domain.Factor {
	factors := make([]domain.Factor, 0, len(hits))
	for _, h := range hits {
		claim := h.Summary
		if claim == "" {
			claim = h.Title
		}
		factors = append(factors, domain.Factor{Claim: claim, Polarity: "neutral", Sources: []string{h.URL}})
	}
	return factors
}

func standardAnswerQuestion(market domain.Market) string {
	return fmt.Sprintf("What is the latest information relevant to whether %q resolves YES?", market.Title)
}

func deepResearchInstructions(market domain.Market) string {
	return fmt.Sprintf("Research the market %q (ticker %s) and assess the probability it resolves YES, citing sources for every factual claim.", market.Title, market.Ticker)
}
