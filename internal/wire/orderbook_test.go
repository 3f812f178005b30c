package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderbook(t *testing.T) {
	raw := json.RawMessage(`{
		"ticker": "T",
		"yes": [[48, 100], [47, 50]],
		"no": [[51, 80]],
		"ts": 1700000000000
	}`)

	ob, err := DecodeOrderbook(raw)
	require.NoError(t, err)
	require.Len(t, ob.YesBids, 2)
	assert.Equal(t, int64(48), ob.YesBids[0].PriceCents)
	best, ok := ob.BestYesBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), best.Quantity)

	asks := ob.YesAskFromNoBids()
	require.Len(t, asks, 1)
	assert.Equal(t, int64(49), asks[0].PriceCents)
}

func TestDecodeOrderbookRejectsDuplicateLevel(t *testing.T) {
	raw := json.RawMessage(`{"ticker":"T","yes":[[48,10],[48,5]],"no":[]}`)
	_, err := DecodeOrderbook(raw)
	assert.Error(t, err)
}

func TestDecodeOrderbookRejectsNonPositiveQuantity(t *testing.T) {
	raw := json.RawMessage(`{"ticker":"T","yes":[[48,0]],"no":[]}`)
	_, err := DecodeOrderbook(raw)
	assert.Error(t, err)
}
