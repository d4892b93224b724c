package snapshot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

func sampleTrades(n int) []model.Trade {
	out := make([]model.Trade, n)
	for i := range out {
		out[i] = model.Trade{
			Politician:   fmt.Sprintf("Member %d", i),
			Party:        "Democrat",
			Chamber:      "House",
			State:        "CA",
			TradedIssuer: "Microsoft Corp",
			Ticker:       "MSFT",
			Published:    "15:00 Yesterday",
			Traded:       "1 Oct 2026",
			FiledAfter:   "12 days",
			Owner:        "Spouse",
			Type:         "Buy",
			Size:         "1K–15K",
			Value:        8000,
			Price:        "$420.00",
		}
	}
	return out
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}

func TestEncode_Document(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 5, 0, time.Local)
	trades := sampleTrades(1)
	trades[0].TradedIssuer = "AT&T <Inc>"

	data, err := encode(at, trades)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"updated_at": "2026-10-16 09:30:05"`)
	assert.Contains(t, s, `"total_trades": 1`)
	assert.Contains(t, s, "1K–15K", "non-ASCII must be written verbatim")
	assert.Contains(t, s, "AT&T <Inc>", "HTML characters must not be escaped")
	assert.True(t, strings.HasPrefix(s, "{\n  \"updated_at\""))
}

func TestEncode_NilTradesWritesEmptyArray(t *testing.T) {
	data, err := encode(time.Now(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trades": []`)
}

func TestDecode_RoundTripsTrades(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 5, 0, time.Local)
	trades := sampleTrades(3)

	data, err := encode(at, trades)
	require.NoError(t, err)

	snap, err := decode("x", data)
	require.NoError(t, err)
	assert.Equal(t, "x", snap.ID)
	assert.Equal(t, 3, snap.TotalCount)
	assert.Equal(t, trades, snap.Trades)
	assert.True(t, at.Equal(snap.CreatedAt))
}

func TestDecode_LegacyDocumentWithoutValue(t *testing.T) {
	raw := `{"updated_at":"bogus","total_trades":1,"trades":[{"politician":"Jane Doe","ticker":"AAPL"}]}`

	snap, err := decode("old", []byte(raw))
	require.NoError(t, err)
	require.Len(t, snap.Trades, 1)
	assert.Equal(t, "Jane Doe", snap.Trades[0].Politician)
	assert.Zero(t, snap.Trades[0].Value)
	assert.True(t, snap.CreatedAt.IsZero())
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := decode("bad", []byte("{not json"))
	assert.Error(t, err)
}

func TestExcess(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	got, err := excess(ids, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = excess(ids[:2], 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = excess(ids, 0)
	assert.Error(t, err)
}
