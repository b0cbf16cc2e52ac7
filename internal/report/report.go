// Package report renders a simulation run's completed trades and daily
// equity curve, as a styled text report and as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guyghost/constantine-backtest/internal/ledger"
	"github.com/guyghost/constantine-backtest/pkg/utils"
	"github.com/shopspring/decimal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	winStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Summary is the set of aggregate statistics computed from a run's trades
// and daily-balance series.
type Summary struct {
	StartingBalance decimal.Decimal
	EndingBalance   decimal.Decimal
	TotalReturn     decimal.Decimal
	TotalReturnPct  decimal.Decimal
	MaxDrawdown     decimal.Decimal
	MaxDrawdownPct  decimal.Decimal
	SharpeRatio     decimal.Decimal
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         decimal.Decimal
	TotalProfit     decimal.Decimal
	TotalLoss       decimal.Decimal
	ProfitFactor    decimal.Decimal
	LargestWin      decimal.Decimal
	LargestLoss     decimal.Decimal
}

// Summarize computes a Summary from a run's closed trades and daily-balance
// snapshots.
func Summarize(trades []ledger.Trade, dailyBalance []decimal.Decimal) Summary {
	s := Summary{TotalTrades: len(trades)}
	if len(dailyBalance) > 0 {
		s.StartingBalance = dailyBalance[0]
		s.EndingBalance = dailyBalance[len(dailyBalance)-1]
	}
	s.TotalReturn = s.EndingBalance.Sub(s.StartingBalance)
	if !s.StartingBalance.IsZero() {
		s.TotalReturnPct = utils.PercentChange(s.StartingBalance, s.EndingBalance)
	}
	s.SharpeRatio = utils.SharpeRatio(dailyBalance, 365)

	for _, tr := range trades {
		if tr.PnL.IsPositive() {
			s.WinningTrades++
			s.TotalProfit = s.TotalProfit.Add(tr.PnL)
			if tr.PnL.GreaterThan(s.LargestWin) {
				s.LargestWin = tr.PnL
			}
		} else {
			s.LosingTrades++
			loss := tr.PnL.Abs()
			s.TotalLoss = s.TotalLoss.Add(loss)
			if loss.GreaterThan(s.LargestLoss) {
				s.LargestLoss = loss
			}
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).Div(decimal.NewFromInt(int64(s.TotalTrades))).Mul(decimal.NewFromInt(100))
	}
	if !s.TotalLoss.IsZero() {
		s.ProfitFactor = s.TotalProfit.Div(s.TotalLoss)
	}

	peak := s.StartingBalance
	for _, bal := range dailyBalance {
		if bal.GreaterThan(peak) {
			peak = bal
		}
		dd := peak.Sub(bal)
		if dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
			if !peak.IsZero() {
				s.MaxDrawdownPct = dd.Div(peak).Mul(decimal.NewFromInt(100))
			}
		}
	}
	return s
}

// GenerateReport renders a full text report: the summary section followed by
// every closed trade.
func GenerateReport(trades []ledger.Trade, dailyBalance []decimal.Decimal) string {
	s := Summarize(trades, dailyBalance)
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("BACKTEST PERFORMANCE REPORT") + "\n\n")
	fmt.Fprintf(&sb, "Starting Balance:   %s\n", s.StartingBalance.StringFixed(2))
	fmt.Fprintf(&sb, "Ending Balance:     %s\n", s.EndingBalance.StringFixed(2))
	fmt.Fprintf(&sb, "Total Return:       %s (%s%%)\n", s.TotalReturn.StringFixed(2), s.TotalReturnPct.StringFixed(2))
	fmt.Fprintf(&sb, "Max Drawdown:       %s (%s%%)\n", s.MaxDrawdown.StringFixed(2), s.MaxDrawdownPct.StringFixed(2))
	fmt.Fprintf(&sb, "Sharpe Ratio:       %s\n\n", s.SharpeRatio.StringFixed(2))

	sb.WriteString(headerStyle.Render("TRADE STATISTICS") + "\n\n")
	fmt.Fprintf(&sb, "Total Trades:       %d\n", s.TotalTrades)
	fmt.Fprintf(&sb, "Winning Trades:     %d\n", s.WinningTrades)
	fmt.Fprintf(&sb, "Losing Trades:      %d\n", s.LosingTrades)
	fmt.Fprintf(&sb, "Win Rate:           %s%%\n", s.WinRate.StringFixed(2))
	fmt.Fprintf(&sb, "Profit Factor:      %s\n", s.ProfitFactor.StringFixed(2))
	fmt.Fprintf(&sb, "Largest Win:        %s\n", s.LargestWin.StringFixed(2))
	fmt.Fprintf(&sb, "Largest Loss:       %s\n\n", s.LargestLoss.StringFixed(2))

	if len(trades) > 0 {
		sb.WriteString(headerStyle.Render("CLOSED TRADES") + "\n\n")
		for i, tr := range trades {
			style := winStyle
			tag := "WIN"
			if tr.PnL.IsNegative() {
				style = lossStyle
				tag = "LOSS"
			}
			fmt.Fprintf(&sb, "#%-4d %s/%s %s entry=%s exit=%s qty=%s pnl=%s %s\n",
				i+1, tr.Exchange, tr.Symbol, tr.Side,
				tr.EntryPrice.StringFixed(2), tr.ExitPrice.StringFixed(2), tr.Qty.StringFixed(4),
				tr.PnL.StringFixed(2), style.Render(tag))
		}
	}
	return sb.String()
}

// WriteEquityCSV writes the daily-balance series as CSV (index, equity) so
// an external tool can chart it.
func WriteEquityCSV(w io.Writer, dailyBalance []decimal.Decimal) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{"index", "equity"}); err != nil {
		return err
	}
	for i, bal := range dailyBalance {
		if err := cw.Write([]string{strconv.Itoa(i), bal.StringFixed(8)}); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteTradesCSV writes every closed trade as CSV.
func WriteTradesCSV(w io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	header := []string{"id", "exchange", "symbol", "side", "opened_at", "closed_at", "entry_price", "exit_price", "qty", "pnl"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, tr := range trades {
		row := []string{
			tr.ID, tr.Exchange, tr.Symbol, string(tr.Side),
			time.UnixMilli(tr.OpenedAt).UTC().Format(time.RFC3339),
			time.UnixMilli(tr.ClosedAt).UTC().Format(time.RFC3339),
			tr.EntryPrice.String(), tr.ExitPrice.String(), tr.Qty.String(), tr.PnL.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}
