package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// printSummary renders the end-of-run report.
func printSummary(w io.Writer, r runReport) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	warn := yellow.Render("●")
	dot := dim.Render("●")

	t := r.Totals
	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("tgenstats")+"  "+dim.Render("v"+version))
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Input"))
	lines = append(lines, fmt.Sprintf("    %s  Files          %s (%s named, %s unnamed)", check,
		humanize.Comma(int64(t.Files)), humanize.Comma(int64(t.NamedFiles)), humanize.Comma(int64(t.UnnamedFiles))))
	if t.FailedFiles > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Failed         %s", warn, yellow.Render(humanize.Comma(int64(t.FailedFiles))+" files")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Transfers      %s successes, %s errors", check,
		humanize.Comma(t.Successes), humanize.Comma(t.Errors)))
	if t.Malformed > 0 || t.OutOfRange > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Skipped        %s malformed, %s outside window", warn,
			humanize.Comma(t.Malformed), humanize.Comma(t.OutOfRange)))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Output"))
	lines = append(lines, fmt.Sprintf("    %s  Servers        %d nodes, %d peers, %s received", check,
		r.Nodes, r.Peers, humanize.Bytes(uint64(r.Bytes))))
	lines = append(lines, fmt.Sprintf("    %s  Document       %s", check, cyan.Render(r.Output)))
	if r.DBPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  DuckDB         %s %s", check, cyan.Render(r.DBPath),
			dim.Render("("+humanize.Comma(r.DBRows)+" rows)")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  DuckDB         %s", dot, dim.Render("disabled")))
	}
	if r.Published != "" {
		lines = append(lines, fmt.Sprintf("    %s  Published      %s", check, cyan.Render(r.Published)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Published      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
