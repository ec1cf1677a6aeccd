// internal/ui/report/views.go
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/bot"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/models"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

var titleStyle = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

// Positions отрисовывает позиции кошелька. Позиции, в диапазоне которых текущая цена, выделены зелёным.
func Positions(positions []types.Position) string {
	if len(positions) == 0 {
		return titleStyle.Render("No open positions")
	}
	palette := DefaultPalette()
	t := NewTable(
		Column{Header: "Position"},
		Column{Header: "Lower", Align: lipgloss.Right},
		Column{Header: "Upper", Align: lipgloss.Right},
		Column{Header: "Price", Align: lipgloss.Right},
		Column{Header: "Amount A", Align: lipgloss.Right},
		Column{Header: "Amount B", Align: lipgloss.Right},
		Column{Header: "Liquidity", Align: lipgloss.Right},
	)
	for _, p := range positions {
		color := palette.Warning
		if p.PoolPrice.GreaterThanOrEqual(p.Lower) && p.PoolPrice.LessThan(p.Upper) {
			color = palette.Success
		}
		liquidity := "0"
		if p.Liquidity != nil {
			liquidity = p.Liquidity.String()
		}
		t.AddStyledRow(color,
			shortKey(p.Address),
			price(p.Lower),
			price(p.Upper),
			price(p.PoolPrice),
			p.AmountA.String(),
			p.AmountB.String(),
			liquidity,
		)
	}
	return titleStyle.Render(fmt.Sprintf("Positions (%d)", len(positions))) + "\n" + t.View()
}

// Cycles отрисовывает записи журнала циклов.
func Cycles(cycles []*models.Cycle) string {
	if len(cycles) == 0 {
		return titleStyle.Render("Journal is empty")
	}
	palette := DefaultPalette()
	t := NewTable(
		Column{Header: "Cycle"},
		Column{Header: "Started"},
		Column{Header: "Status"},
		Column{Header: "Step"},
		Column{Header: "Duration", Align: lipgloss.Right},
		Column{Header: "Closed", Align: lipgloss.Right},
		Column{Header: "Position"},
		Column{Header: "Error", Width: 40},
	)
	for _, c := range cycles {
		color := palette.Text
		switch c.Status {
		case models.CycleCompleted:
			color = palette.Success
		case models.CycleFailed:
			color = palette.Error
		}
		closed := fmt.Sprintf("%d", c.Closed)
		if c.CloseFailures > 0 {
			closed = fmt.Sprintf("%d (%d failed)", c.Closed, c.CloseFailures)
		}
		t.AddStyledRow(color,
			c.CycleID,
			c.StartedAt.Local().Format(time.DateTime),
			c.Status,
			c.Step,
			(time.Duration(c.DurationMs) * time.Millisecond).String(),
			closed,
			c.Position,
			c.ErrorMessage,
		)
	}
	return titleStyle.Render(fmt.Sprintf("Cycles (%d)", len(cycles))) + "\n" + t.View()
}

// Cycle отрисовывает отчёт одного цикла: по строке на операцию.
func Cycle(r *bot.CycleReport) string {
	palette := DefaultPalette()
	t := NewTable(
		Column{Header: "Step"},
		Column{Header: "Operation"},
		Column{Header: "Subject"},
		Column{Header: "Amount", Align: lipgloss.Right},
		Column{Header: "Result", Width: 48},
	)
	add := func(o bot.Outcome) {
		color, result := palette.Success, o.Signature.String()
		switch {
		case o.Err != nil:
			color, result = palette.Error, o.Err.Error()
		case o.Skipped:
			color, result = palette.TextMuted, "skipped: "+o.Reason
		}
		amount := ""
		if !o.Amount.IsZero() {
			amount = o.Amount.String()
		}
		t.AddStyledRow(color, string(o.Step), o.Operation, shortKey(o.Subject), amount, result)
	}
	for _, o := range r.Closes {
		add(o)
	}
	if r.Swap != nil {
		add(*r.Swap)
	}
	if r.Open != nil {
		add(*r.Open)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Cycle %s", r.ID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "step: %s  duration: %s  decision: %s\n", r.Step, r.Duration().Round(time.Millisecond), r.Decision.Direction)
	if !r.Width.IsZero() {
		fmt.Fprintf(&b, "width: %s  range: [%s, %s]\n", r.Width.String(), price(r.Range.Lower), price(r.Range.Upper))
	}
	if t.RowCount() > 0 {
		b.WriteString(t.View())
		b.WriteString("\n")
	}
	if r.Err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(palette.Error).Render("error: " + r.Err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func price(d decimal.Decimal) string {
	return d.StringFixed(6)
}

func shortKey(pk solana.PublicKey) string {
	if pk.IsZero() {
		return "-"
	}
	s := pk.String()
	if len(s) <= 12 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
