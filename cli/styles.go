package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/keyvet-hq/keyvet/core"
	"github.com/keyvet-hq/keyvet/core/findings"
)

// Severity-tier styles for terminal output.
var (
	styleCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeader   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// scoreStyle picks the style tier for a risk score.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score > 80:
		return styleCritical
	case score > 60:
		return styleHigh
	case score > 40:
		return styleMedium
	default:
		return styleLow
	}
}

// printSummary renders the one-shot scan result followed by the findings.
func printSummary(w io.Writer, summary *core.ScanSummary, ff []findings.Finding) {
	fmt.Fprintf(w, "%s  %d findings in %.1fs\n\n",
		styleHeader.Render("Scan complete"), summary.FindingsCount, summary.DurationSeconds)
	printFindings(w, ff)
}

// printFindings renders stored findings, highest risk first (the store's
// order).
func printFindings(w io.Writer, ff []findings.Finding) {
	if len(ff) == 0 {
		fmt.Fprintln(w, styleDim.Render("no findings"))
		return
	}
	for i := range ff {
		f := &ff[i]
		score := scoreStyle(f.RiskScore).Render(fmt.Sprintf("%3d", f.RiskScore))
		loc := locationString(f.Location)
		fmt.Fprintf(w, "%s  %-17s %-24s %s\n", score, f.Source, f.Preview, loc)
		if len(f.IssueFlags) > 0 {
			fmt.Fprintf(w, "     %s\n", styleDim.Render(joinFlags(f.IssueFlags)))
		}
	}
}

func locationString(loc findings.Location) string {
	switch loc.Kind {
	case findings.LocFile:
		return fmt.Sprintf("%s:%d", loc.Path, loc.Line)
	case findings.LocGitFile:
		return fmt.Sprintf("%s:%d (repo %s)", loc.Path, loc.Line, loc.Repo)
	case findings.LocGitCommit:
		return fmt.Sprintf("%s@%.10s:%s", loc.Repo, loc.Commit, loc.Path)
	case findings.LocBrowser:
		return fmt.Sprintf("%s/%s", loc.Browser, loc.Profile)
	default:
		return loc.Path
	}
}

func joinFlags(flags []string) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
