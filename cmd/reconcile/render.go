package reconcile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BerryBytes/awsorgctl/internal/engine"
	"github.com/BerryBytes/awsorgctl/internal/spec"
	"github.com/BerryBytes/awsorgctl/models"
)

func renderPlan(w io.Writer, pass *engine.Pass) {
	if len(pass.State.Degraded()) > 0 {
		fmt.Fprintf(w, "Skipping unreachable account(s): %s\n", strings.Join(pass.State.Degraded(), ", "))
	}

	for _, c := range pass.Changes {
		if c.Kind == models.ChangeBlocked {
			fmt.Fprintf(w, "Blocked: %s %q in %s: %s\n", c.Resource, c.Name, c.AccountID, c.Reason)
		}
	}

	if pass.Plan.Empty() {
		fmt.Fprintln(w, "No changes. Accounts match the spec.")
		return
	}

	for i, batch := range pass.Plan.Batches {
		fmt.Fprintf(w, "Batch %d:\n", i+1)
		for _, op := range batch {
			fmt.Fprintf(w, "  %s\n", op)
		}
	}
	fmt.Fprintf(w, "Plan: %d operation(s) in %d batch(es)\n", pass.Plan.Size(), len(pass.Plan.Batches))
}

func renderReport(w io.Writer, report *models.RunReport) {
	for _, res := range report.Results {
		switch res.Outcome {
		case models.OutcomeFailed:
			fmt.Fprintf(w, "Failed after %d attempt(s): %s: %s\n", res.Attempts, res.Operation, res.Err)
		case models.OutcomeSkipped:
			fmt.Fprintf(w, "Skipped: %s\n", res.Operation)
		}
	}

	counts := report.Counts()
	order := []models.Outcome{
		models.OutcomeApplied,
		models.OutcomeNoOp,
		models.OutcomeBlocked,
		models.OutcomeFailed,
		models.OutcomeSkipped,
	}
	var parts []string
	for _, o := range order {
		if counts[o] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[o], o))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "0 applied")
	}
	fmt.Fprintf(w, "Run finished in %s: %s\n",
		report.Finished.Sub(report.Started).Round(10e6), strings.Join(parts, ", "))
}

func renderAccounts(w io.Writer, model *spec.Model) {
	managed := map[string]bool{}
	for _, id := range model.ManagedAccountIDs() {
		managed[id] = true
	}

	accounts := append([]models.Account(nil), model.Accounts...)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })

	fmt.Fprintf(w, "%-24s%-16s%-12s%s\n", "Name", "Id", "Status", "Managed")
	for _, a := range accounts {
		state := "-"
		if managed[a.ID] {
			state = "yes"
		} else if a.Status == "ACTIVE" {
			state = "no"
		}
		fmt.Fprintf(w, "%-24s%-16s%-12s%s\n", a.Name, a.ID, a.Status, state)
	}
}

func renderDrift(w io.Writer, pass *engine.Pass) {
	drift := 0
	for _, c := range pass.Changes {
		if c.Kind == models.ChangeNoOp {
			continue
		}
		drift++
		reason := c.Reason
		if reason == "" {
			reason = string(c.Kind)
		}
		fmt.Fprintf(w, "%-12s%-32s%-16s%s\n", c.Resource, c.Name, c.AccountID, reason)
	}
	if drift == 0 {
		fmt.Fprintln(w, "No drift detected.")
	}
}
