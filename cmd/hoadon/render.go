package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hoadon/pkg/service"
	"hoadon/pkg/timewindow"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func joinLabels() string {
	return strings.Join(timewindow.Labels(), ", ")
}

func line(b *strings.Builder, label string, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
}

func count(n int) string {
	return fmt.Sprintf("%d", n)
}

func failCount(n int) string {
	if n == 0 {
		return okStyle.Render("0")
	}
	return failStyle.Render(fmt.Sprintf("%d", n))
}

func renderCollect(s *service.CollectSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Collection (%s window)", s.Window)) + "\n")
	if s.NoData {
		b.WriteString("  " + warnStyle.Render("no email data in the window") + "\n")
		return b.String()
	}
	line(&b, "messages", fmt.Sprintf("%s seen, %s relevant", count(s.Messages), count(s.Relevant)))
	line(&b, "attachments", fmt.Sprintf("%s saved, %s archives unpacked", count(s.Attachments), count(s.Archives)))
	line(&b, "documents", fmt.Sprintf("%s extracted, %s failed", count(s.Documents), failCount(s.Failures)))
	line(&b, "store", fmt.Sprintf("%s new, %s duplicates", count(s.Stored), count(s.Duplicates)))
	line(&b, "organized", fmt.Sprintf("%s files", count(s.Organized)))
	if s.Uploaded > 0 || s.UploadFailed > 0 {
		line(&b, "drive", fmt.Sprintf("%s uploaded, %s failed", count(s.Uploaded), failCount(s.UploadFailed)))
	}
	return b.String()
}

func renderReports(s *service.ReportSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reports") + "\n")
	if len(s.Generated) == 0 {
		b.WriteString("  " + warnStyle.Render("no reports generated") + "\n")
	}
	for _, r := range s.Generated {
		fmt.Fprintf(&b, "  %s %s  %d rows (%d in, %d out)  %s\n",
			okStyle.Render("✓"), r.Entity, r.Result.Rows, r.Result.Incoming, r.Result.Outgoing,
			labelStyle.Render(r.Result.Dir))
	}
	for _, name := range s.Skipped {
		fmt.Fprintf(&b, "  %s %s  %s\n", warnStyle.Render("-"), name, labelStyle.Render("no documents in range"))
	}
	if s.Uploaded > 0 || s.UploadFailed > 0 {
		line(&b, "drive", fmt.Sprintf("%s uploaded, %s failed", count(s.Uploaded), failCount(s.UploadFailed)))
	}
	return b.String()
}

func renderRun(s *service.RunSummary) string {
	out := renderCollect(s.Collect)
	if s.Reports != nil {
		out += renderReports(s.Reports)
	}
	return out
}

func renderDoctor(checks []check) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Doctor") + "\n")
	for _, c := range checks {
		mark := okStyle.Render("ok")
		note := ""
		if !c.ok {
			mark = failStyle.Render("missing")
			note = " " + labelStyle.Render("("+c.detail+")")
		}
		fmt.Fprintf(&b, "  %-20s %s%s\n", c.name, mark, note)
	}
	return b.String()
}
