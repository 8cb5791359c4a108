package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// Console implementa ports.Presenter.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un presenter que escribe a stdout. table=false imprime
// una sola línea por refresh.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un presenter para tests.
func NewConsoleWriter(w io.Writer, table bool, now func() time.Time) *Console {
	if now == nil {
		now = time.Now
	}
	return &Console{out: w, table: table, now: now}
}

// Render imprime la vista en el modo configurado.
func (c *Console) Render(_ context.Context, v domain.View) error {
	if v.Epoch == 0 {
		fmt.Fprintf(c.out, "[%s] waiting for the first round\n", c.now().Format("15:04:05"))
		return nil
	}
	if c.table {
		c.printFull(v)
	} else {
		c.printCompact(v)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(v domain.View) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] round #%d", c.now().Format("15:04:05"), v.Epoch)
	if v.Paused {
		sb.WriteString(" PAUSED")
	}
	for _, r := range v.Window {
		fmt.Fprintf(&sb, " | #%d %s %s", r.Epoch, statusIcon(r.Status), priceLabel(r))
	}
	if v.LiveEpoch != 0 {
		for _, p := range v.Positions {
			if p.Epoch == v.LiveEpoch {
				fmt.Fprintf(&sb, " | live bet %s %s", p.Direction, p.Amount.String())
			}
		}
	}
	if v.Unclaimed.Count > 0 {
		fmt.Fprintf(&sb, " | claimable:%d", v.Unclaimed.Count)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la ventana de rondas, el historial y el resumen de premios.
func (c *Console) printFull(v domain.View) {
	state := "open"
	if v.Paused {
		state = "PAUSED"
	}
	fmt.Fprintf(c.out, "\n[%s] round #%d — game %s — min bet %s\n",
		c.now().Format("15:04:05"), v.Epoch, state, v.MinBet.String())

	c.printWindow(v.Window)
	c.printPositions(v.Positions, v.LiveEpoch)
	c.printUnclaimed(v.Unclaimed)
}

// printWindow imprime una fila por ronda visible.
func (c *Console) printWindow(window []domain.Round) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Round", "Status", "Lock", "Close", "Result", "Pool", "Time left")

	now := c.now()
	for _, r := range window {
		closeLabel := "-"
		result := "-"
		if r.HasClosePrice() {
			closeLabel = r.ClosePrice.String()
			result = resultLabel(r)
		}
		left := "-"
		if d := r.TimeLeft(now); d > 0 {
			left = d.Truncate(time.Second).String()
		}
		pool := "-"
		if r.TotalAmount.IsPositive() {
			pool = r.TotalAmount.StringFixed(4)
		}
		table.Append(
			fmt.Sprintf("#%d", r.Epoch),
			r.Status.String(),
			r.LockPrice.String(),
			closeLabel,
			result,
			pool,
			left,
		)
	}
	table.Render()
}

// printUnclaimed imprime el resumen de premios pendientes de reclamar.
func (c *Console) printUnclaimed(s domain.RewardSummary) {
	if s.Count == 0 {
		fmt.Fprintln(c.out, "  no rewards to claim")
		return
	}
	fmt.Fprintf(c.out, "  %d reward(s) to claim — stake %s", s.Count, s.TotalStake.String())
	if s.EstimatedPayout.IsPositive() {
		fmt.Fprintf(c.out, " — est. payout %s", s.EstimatedPayout.StringFixed(4))
	}
	fmt.Fprintln(c.out, " — run with -claim")
}

// resultLabel indica qué lado ganó una ronda cerrada (empate = nadie).
func resultLabel(r domain.Round) string {
	if !r.HasClosePrice() {
		return "-"
	}
	switch {
	case *r.ClosePrice > r.LockPrice:
		return "UP"
	case *r.ClosePrice < r.LockPrice:
		return "DOWN"
	default:
		return "TIE"
	}
}

func priceLabel(r domain.Round) string {
	if r.HasClosePrice() {
		return fmt.Sprintf("%s→%s %s", r.LockPrice, r.ClosePrice, resultLabel(r))
	}
	return r.LockPrice.String()
}

func statusIcon(s domain.RoundStatus) string {
	switch s {
	case domain.RoundLive:
		return "[LIVE]"
	case domain.RoundUpcoming:
		return "[NEXT]"
	case domain.RoundLocked:
		return "[LOCK]"
	default:
		return "[DONE]"
	}
}
