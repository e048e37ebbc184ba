package tradingview

import (
	"bytes"
	"testing"
	"time"

	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTradePinescript(t *testing.T) {
	trades := []account.Trade{
		{
			ID:         1,
			Side:       types.LONG,
			EntryPrice: 23085.50,
			EntryTime:  time.Date(2025, 8, 4, 13, 45, 0, 0, time.UTC),
			ExitPrice:  23185.50,
			ExitTime:   time.Date(2025, 8, 4, 17, 0, 0, 0, time.UTC),
			PnL:        200.00,
			RMultiple:  2,
			TakeProfit: 23185.50,
			StopLoss:   23035.50,
			ExitReason: account.TakeProfit,
		},
	}

	pineCode := generateTradePinescript(trades)

	expected := `// ============================================
// TRADE VALIDATION MARKERS
// ============================================

t1_entry = time == timestamp("UTC", 2025, 8, 4, 13, 45)
plotshape(t1_entry, title="#1 LONG Entry", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text="#1 LONG\nEntry: 23085.50000\nTP: 23185.50000\nSL: 23035.50000", textcolor=color.white)

t1_exit = time == timestamp("UTC", 2025, 8, 4, 17, 0)
plotshape(t1_exit, title="#1 EXIT", location=location.top, color=color.green, style=shape.labeldown, size=size.small, text="#1 EXIT\nExit: 23185.50000\nR: 2.00\nTAKE_PROFIT", textcolor=color.white)

`
	assert.Equal(t, expected, pineCode)
}

func TestGenerateStructurePinescript(t *testing.T) {
	formed := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	structures := []structure.Structure{
		structure.OrderBlock{
			Zone:     structure.Zone{Dir: types.Bullish, Low: 138, High: 139.5, Start: 40, End: 40, Time: formed},
			Strength: structure.StrengthStrong,
		},
		structure.LiquidityZone{
			Zone:    structure.Zone{Dir: types.Bullish, Low: 109.9, High: 110.1, Start: 12, End: 30, Time: formed},
			Level:   110,
			Touches: 2,
			Side:    structure.SellSide,
			Swept:   true,
			SweptAt: 35,
		},
		structure.FairValueGap{
			Zone:   structure.Zone{Dir: types.Bearish, Low: 150, High: 151, Start: 44, End: 46, Time: formed.AddDate(0, 0, 6)},
			Filled: true,
		},
	}

	pine := generateStructurePinescript(structures)

	assert.Contains(t, pine, "if barstate.islast\n")
	assert.Contains(t, pine, `    // order_block bullish bars 40-40`)
	assert.Contains(t, pine, `box.new(left=timestamp("UTC", 2024, 2, 10, 0, 0), top=139.50000, right=timestamp("UTC", 2024, 2, 10, 0, 0), bottom=138.00000, xloc=xloc.bar_time, extend=extend.right, border_color=color.green`)
	assert.Contains(t, pine, `text="OB strong"`)
	assert.Contains(t, pine, `text="Sell-side liquidity at 110 (tested 2 times), swept"`)
	assert.Contains(t, pine, `extend=extend.none, border_color=color.gray`, "filled gaps are greyed out")

	assert.Empty(t, generateStructurePinescript(nil))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, nil))
	assert.Contains(t, buf.String(), "//@version=5")
	assert.Contains(t, buf.String(), "TRADE VALIDATION MARKERS")
}
