package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		raw    string
		ticker string
		key    string
		ok     bool
	}{
		{"AAPL", "aapl", "aapl", true},
		{"  btc-USD ", "btc-usd", "btc_usd", true},
		{"brk.b", "brk.b", "brk.b", true},
		{"^gspc", "", "", false},
		{"", "", "", false},
		{"aapl; drop table", "", "", false},
		{"averyveryverylongtickername", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sym, err := ParseSymbol(tt.raw)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ticker, sym.Ticker)
			assert.Equal(t, tt.key, sym.Key)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("refresh aapl: %w", NewError(KindPersistence, "store refresh", base))

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.False(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(base))
	assert.Contains(t, err.Error(), "persistence_error")
}

func TestQuoteSpot(t *testing.T) {
	p, ok := Quote{Price: 10, PreviousClose: 9}.Spot()
	assert.True(t, ok)
	assert.Equal(t, 10.0, p)

	p, ok = Quote{PreviousClose: 9}.Spot()
	assert.True(t, ok)
	assert.Equal(t, 9.0, p)

	_, ok = Quote{}.Spot()
	assert.False(t, ok)
}

func TestOutlookValid(t *testing.T) {
	assert.True(t, OutlookRaise.Valid())
	assert.True(t, OutlookStable.Valid())
	assert.False(t, Outlook("up").Valid())
}
