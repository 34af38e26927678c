package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/usecase"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.Faint)
	versionColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
)

func printRow(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "  %-16s", label)
	fmt.Fprintln(w, value)
}

func planPrinter(w io.Writer) usecase.PlanPrinter {
	return func(ctx context.Context, plan *model.ReleasePlan) {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "Release plan")
		printRow(w, "Project", plan.ProjectName)
		printRow(w, "Backend", plan.Backend)
		printRow(w, "Branch", plan.Branch)
		printRow(w, "Version", plan.CurrentVersion.String()+" -> "+versionColor.Sprint(plan.NextVersion.String()))
		printRow(w, "Tag", plan.Tag())
		printRow(w, "Commit message", plan.CommitMessage)
		if plan.NeedsVersionRecord {
			printRow(w, "Version record", "will be created")
		}
		if plan.DryRun {
			warnColor.Fprintln(w, "  Dry run: no change is made to the repository or the release host")
		}

		if notes := strings.TrimSpace(plan.ReleaseNotes); notes != "" {
			fmt.Fprintln(w)
			headerColor.Fprintln(w, "Release notes")
			for _, line := range strings.Split(notes, "\n") {
				fmt.Fprintln(w, "  "+line)
			}
		}
		fmt.Fprintln(w)
	}
}

func printResult(w io.Writer, result *model.RunResult) {
	if result == nil {
		return
	}

	switch result.State {
	case model.StateDone:
		switch {
		case result.Plan == nil:
			versionColor.Fprintln(w, "Done")
		case result.Plan.DryRun:
			versionColor.Fprintf(w, "Dry run of %s completed\n", result.Plan.Tag())
		default:
			versionColor.Fprintf(w, "Released %s\n", result.Plan.Tag())
		}
	case model.StateCancelled:
		warnColor.Fprintln(w, "Release cancelled, nothing was changed")
	case model.StateFailed:
		failColor.Fprintln(w, "Release failed")
		if result.RolledBack {
			printRow(w, "Rollback", "local and remote changes were reverted")
		}
	}

	if p := result.Publish; p != nil {
		if p.Release != nil && p.Release.HTMLURL != "" {
			printRow(w, "Release", p.Release.HTMLURL)
		}
		if p.Asset != nil {
			printRow(w, "Asset", p.Asset.Name)
		}
		for _, warning := range p.Warnings {
			warnColor.Fprintln(w, "  "+warning)
		}
	}

	if len(result.Actions) > 0 {
		headerColor.Fprintln(w, "Actions recorded by dry run")
		for _, a := range result.Actions {
			fmt.Fprintln(w, "  "+a.String())
		}
	}
}
