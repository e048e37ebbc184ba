// Package tradingview renders backtest trades and detected structures as Pine
// Script, for checking results against a TradingView chart.
package tradingview

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
)

func allowDump() bool {
	// Get OS Env for dump DEBUG_DUMP=1 etc
	if os.Getenv("DEBUG_DUMP") == "1" {
		slog.Info("DEBUG_DUMP=1, dumping pine script to stdout")
		return true
	}
	return false
}

// DumpPineScript prints the overlay to stdout when DEBUG_DUMP=1.
func DumpPineScript(trades []account.Trade, structures []structure.Structure) {
	if !allowDump() {
		return
	}
	fmt.Println(Script(trades, structures))
}

// Write writes the overlay script to w.
func Write(w io.Writer, trades []account.Trade, structures []structure.Structure) error {
	_, err := io.WriteString(w, Script(trades, structures))
	return err
}

// Script returns a complete Pine v5 indicator with structure boxes and trade markers.
func Script(trades []account.Trade, structures []structure.Structure) string {
	var sb strings.Builder
	sb.WriteString("//@version=5\n")
	sb.WriteString("indicator(\"smcplan overlay\", overlay=true, max_boxes_count=500, max_labels_count=500)\n\n")
	sb.WriteString(generateStructurePinescript(structures))
	sb.WriteString(generateTradePinescript(trades))
	return sb.String()
}

// generateStructurePinescript draws one box per structure on the last bar.
// Active zones extend right; mitigated, filled or swept ones are greyed out.
func generateStructurePinescript(structures []structure.Structure) string {
	if len(structures) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("// ============================================\n")
	sb.WriteString("// STRUCTURES\n")
	sb.WriteString("// ============================================\n\n")
	sb.WriteString("if barstate.islast\n")

	for _, s := range structures {
		low, high := s.Range()
		start, end := s.Formed()
		at := formatPineTimestamp(s.FormedAt())

		color, extend := "color.green", "extend.right"
		if s.Direction() == types.Bearish {
			color = "color.red"
		}
		if !s.Active() {
			color, extend = "color.gray", "extend.none"
		}

		sb.WriteString(fmt.Sprintf("    // %s %s bars %d-%d\n", s.Kind(), s.Direction(), start, end))
		sb.WriteString(fmt.Sprintf("    box.new(left=%s, top=%.5f, right=%s, bottom=%.5f, xloc=xloc.bar_time, extend=%s, border_color=%s, bgcolor=color.new(%s, 85), text=\"%s\", text_color=%s)\n",
			at, high, at, low, extend, color, color, label(s), color))
	}
	sb.WriteString("\n")
	return sb.String()
}

func label(s structure.Structure) string {
	switch v := s.(type) {
	case structure.OrderBlock:
		return fmt.Sprintf("OB %s", v.Strength)
	case structure.LiquidityZone:
		return v.Describe()
	case structure.FairValueGap:
		return "FVG"
	case structure.Pattern:
		return string(v.Name)
	}
	return string(s.Kind())
}

// generateTradePinescript generates markers for entries and exits, labelled with
// prices and the exit reason.
func generateTradePinescript(trades []account.Trade) string {
	var sb strings.Builder

	sb.WriteString("// ============================================\n")
	sb.WriteString("// TRADE VALIDATION MARKERS\n")
	sb.WriteString("// ============================================\n\n")

	for _, trade := range trades {
		// Entry marker
		entryTimestamp := formatPineTimestamp(trade.EntryTime)
		entryText := fmt.Sprintf("#%d %s\\nEntry: %.5f\\nTP: %.5f\\nSL: %.5f",
			trade.ID, trade.Side, trade.EntryPrice, trade.TakeProfit, trade.StopLoss)

		sb.WriteString(fmt.Sprintf("t%d_entry = time == %s\n", trade.ID, entryTimestamp))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_entry, title=\"#%d %s Entry\", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			trade.ID, trade.ID, trade.Side, entryText))

		// Exit marker
		exitTimestamp := formatPineTimestamp(trade.ExitTime)
		exitColor := "color.green"
		if trade.PnL < 0 {
			exitColor = "color.red"
		}
		exitText := fmt.Sprintf("#%d EXIT\\nExit: %.5f\\nR: %.2f\\n%s",
			trade.ID, trade.ExitPrice, trade.RMultiple, trade.ExitReason)

		sb.WriteString(fmt.Sprintf("t%d_exit = time == %s\n", trade.ID, exitTimestamp))
		sb.WriteString(fmt.Sprintf("plotshape(t%d_exit, title=\"#%d EXIT\", location=location.top, color=%s, style=shape.labeldown, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			trade.ID, trade.ID, exitColor, exitText))
	}

	return sb.String()
}

func formatPineTimestamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("timestamp(\"UTC\", %d, %d, %d, %d, %d)",
		utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), utc.Minute())
}
