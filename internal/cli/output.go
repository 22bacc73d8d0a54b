package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dan-solli/goalgraph/pkg/model"
)

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.stdout, args...)
}

// emit prints v as indented JSON when --json is set and reports whether it did.
func (a *app) emit(v any) (bool, error) {
	if !a.jsonOut {
		return false, nil
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// warn prints a non-fatal problem to stderr.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.stderr, "%s %s\n", color.New(color.FgYellow).Sprint("warning:"), fmt.Sprintf(format, args...))
}

func check(text string) string {
	return color.New(color.FgGreen).Sprint("✓") + " " + text
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusActive:
		return color.New(color.FgHiGreen).Sprint(s)
	case model.StatusPaused:
		return color.New(color.FgYellow).Sprint(s)
	case model.StatusBlocked:
		return color.New(color.FgRed).Sprint(s)
	case model.StatusCompleted:
		return color.New(color.FgHiBlue).Sprint(s)
	case model.StatusAbandoned:
		return color.New(color.FgHiBlack).Sprint(s)
	default:
		return string(s)
	}
}

func branchLabel(s model.BranchStatus) string {
	switch s {
	case model.BranchActive:
		return color.New(color.FgHiGreen).Sprint(s)
	case model.BranchMerged:
		return color.New(color.FgHiBlue).Sprint(s)
	default:
		return color.New(color.FgHiBlack).Sprint(s)
	}
}

func progressBar(p float64) string {
	const width = 10
	filled := int(p*width + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]" + fmt.Sprintf(" %3.0f%%", p*100)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (a *app) printEntries(entries []model.IndexEntry) error {
	if ok, err := a.emit(entries); ok {
		return err
	}
	if len(entries) == 0 {
		a.println("No goals found")
		return nil
	}
	for _, e := range entries {
		archived := ""
		if e.Archived {
			archived = color.New(color.FgHiBlack).Sprint(" [archived]")
		}
		a.printf("%-32s %-10s %s  %s%s\n", e.ID, statusLabel(e.Status), progressBar(e.Progress), e.Title, archived)
	}
	return nil
}

func (a *app) printGoal(g *model.Goal) error {
	if ok, err := a.emit(g); ok {
		return err
	}
	a.printf("Goal: %s (%s)\n", g.Title, g.ID)
	a.printf("Status: %s  Priority: %s  Progress: %s\n", statusLabel(g.Status), g.Priority, progressBar(g.Progress))
	a.printf("Project: %s  Branch: %s\n", g.Project, g.CurrentBranch())
	if g.Description != "" {
		a.printf("Description: %s\n", g.Description)
	}
	a.printf("\nCurrent: %s\nDesired: %s\n", g.CurrentState, g.DesiredState)
	if len(g.Verification.Criteria) > 0 {
		a.printf("\nCriteria (%s):\n", g.Verification.Method)
		for _, c := range g.Verification.Criteria {
			a.printf("  - %s\n", c)
		}
	}
	if len(g.Tags) > 0 {
		a.printf("Tags: %s\n", strings.Join(g.Tags, ", "))
	}
	if g.Parent != "" {
		a.printf("Parent: %s\n", g.Parent)
	}
	if len(g.Children) > 0 {
		a.printf("Children: %s\n", strings.Join(g.Children, ", "))
	}
	if len(g.DependsOn) > 0 {
		a.printf("Depends on: %s\n", strings.Join(g.DependsOn, ", "))
	}
	if len(g.Informs) > 0 {
		a.printf("Informs: %s\n", strings.Join(g.Informs, ", "))
	}
	if g.EvolvedFrom != "" {
		a.printf("Evolved from: %s\n", g.EvolvedFrom)
	}
	if files := append(append([]string(nil), g.Context.FilesPrimary...), g.Context.FilesRelated...); len(files) > 0 {
		a.printf("Files: %s\n", strings.Join(files, ", "))
	}
	for _, l := range g.Context.Learnings {
		a.printf("Learning: %s\n", l)
	}
	for _, d := range g.Context.Decisions {
		a.printf("Decision: %s (%s)\n", d.Decision, stamp(d.Date))
	}
	a.printf("Updated: %s by %s  Snapshots: %d\n", stamp(g.Updated), g.LastTouchedBy, len(g.Snapshots))
	return nil
}

func (a *app) printSnapshots(snaps []*model.Snapshot) error {
	if ok, err := a.emit(snaps); ok {
		return err
	}
	if len(snaps) == 0 {
		a.println("No snapshots found")
		return nil
	}
	for _, s := range snaps {
		a.printf("%s  %s  %-14s %-16s %s %s\n", s.ID, stamp(s.Created), s.Trigger, s.Branch, progressBar(s.Progress), s.Event)
		if s.Summary != "" {
			a.printf("    %s\n", s.Summary)
		}
		for _, c := range s.Changes {
			a.printf("    %s\n", describeChange(c))
		}
	}
	return nil
}

func describeChange(c model.FieldChange) string {
	if len(c.Added) > 0 || len(c.Removed) > 0 {
		parts := []string{}
		if len(c.Added) > 0 {
			parts = append(parts, "+"+strings.Join(c.Added, ", +"))
		}
		if len(c.Removed) > 0 {
			parts = append(parts, "-"+strings.Join(c.Removed, ", -"))
		}
		return c.Field + ": " + strings.Join(parts, " ")
	}
	return fmt.Sprintf("%s: %q -> %q", c.Field, c.From, c.To)
}

func (a *app) printBranches(branches []*model.Branch, current string) error {
	if ok, err := a.emit(branches); ok {
		return err
	}
	for _, b := range branches {
		marker := "  "
		if b.ID == current {
			marker = color.New(color.FgHiMagenta).Sprint("* ")
		}
		a.printf("%s%-28s %-10s %d snapshot(s)", marker, b.ID, branchLabel(b.Status), len(b.Snapshots))
		if b.BranchPoint != "" {
			a.printf("  from %s@%s", b.ParentBranch, b.BranchPoint)
		}
		if b.MergedTo != "" {
			a.printf("  -> %s", b.MergedTo)
		}
		a.println()
	}
	return nil
}

func (a *app) printProject(p *model.Project) error {
	if ok, err := a.emit(p); ok {
		return err
	}
	a.printf("Project: %s (%s)\n", p.Name, p.ID)
	a.printf("Paths: %s\n", strings.Join(p.Paths, ", "))
	if len(p.Aliases) > 0 {
		a.printf("Aliases: %s\n", strings.Join(p.Aliases, ", "))
	}
	a.printf("Auto-detect: %t\n", p.AutoDetect)
	a.printf("Goals: %d active, %d paused, %d completed, %d abandoned\n",
		len(p.Goals.Active), len(p.Goals.Paused), len(p.Goals.Completed), len(p.Goals.Abandoned))
	return nil
}
