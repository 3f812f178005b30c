package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/domain"
)

func TestMockProviderSearchReturnsRequestedCount(t *testing.T) {
	p := NewMockProvider()
	result, err := p.Search(context.Background(), "will it happen", domain.SearchOptions{NumResults: 4})
	require.NoError(t, err)
	assert.Len(t, result.Results, 4)
	assert.Equal(t, 0.0, result.CostDollars)
}

func TestMockProviderSearchDefaultsToOneResult(t *testing.T) {
	p := NewMockProvider()
	result, err := p.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
}

func TestMockProviderGetContentsEchoesEachURL(t *testing.T) {
	p := NewMockProvider()
	result, err := p.GetContents(context.Background(), []string{"a", "b", "c"}, domain.ContentOptions{})
	require.NoError(t, err)
	require.Len(t, result.Contents, 3)
	assert.Equal(t, "a", result.Contents[0].URL)
}

func TestMockProviderPollResearchTaskReportsCompleted(t *testing.T) {
	p := NewMockProvider()
	taskID, err := p.StartResearchTask(context.Background(), "instructions", "model", nil)
	require.NoError(t, err)
	status, err := p.PollResearchTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.NotEmpty(t, status.Output)
}
