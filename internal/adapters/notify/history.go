package notify

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// printPositions imprime el historial de apuestas, más recientes primero.
func (c *Console) printPositions(positions []domain.Position, liveEpoch int64) {
	fmt.Fprintf(c.out, "\n── YOUR BETS (%d) ──\n", len(positions))
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Round", "Side", "Amount", "Result", "Claimed")
	for _, p := range positions {
		result := string(p.Outcome)
		if p.Epoch == liveEpoch {
			result = "LIVE"
		}
		claimed := ""
		switch {
		case p.Claimed:
			claimed = "yes"
		case p.IsClaimable():
			claimed = "pending"
		}
		table.Append(
			fmt.Sprintf("#%d", p.Epoch),
			string(p.Direction),
			p.Amount.String(),
			result,
			claimed,
		)
	}
	table.Render()
}

// PrintClaims imprime el log de auditoría de reclamaciones.
func (c *Console) PrintClaims(reports []domain.ClaimReport) {
	fmt.Fprintf(c.out, "\n── CLAIMS (%d) ──\n", len(reports))
	if len(reports) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Rounds", "Stake", "Status", "Tx")
	for _, r := range reports {
		status := "OK"
		if r.Err != "" {
			status = "FAILED: " + truncate(r.Err, 40)
		}
		table.Append(
			r.SubmittedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%v", r.Epochs),
			r.TotalStake.String(),
			status,
			shortHash(r.TxHash),
		)
	}
	table.Render()
}

// PrintClaimResult imprime el resultado de un ClaimAll.
func (c *Console) PrintClaimResult(r domain.ClaimReport, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(c.out, "claim failed: %v\n", err)
	case r.Claimed == 0:
		fmt.Fprintln(c.out, "nothing to claim")
	default:
		fmt.Fprintf(c.out, "claimed %d round(s) %v — stake %s — tx %s\n",
			r.Claimed, r.Epochs, r.TotalStake.String(), shortHash(r.TxHash))
	}
}

// PrintBet imprime la confirmación de una apuesta.
func (c *Console) PrintBet(p domain.Position) {
	fmt.Fprintf(c.out, "bet placed: round #%d %s %s\n", p.Epoch, p.Direction, p.Amount.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}
