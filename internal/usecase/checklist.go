package usecase

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"qgate/internal/domain"
	"qgate/internal/gateway"
)

// checklistLineRe matches a markdown checkbox list item whose text references
// a pull request number, e.g. "- [ ] PR #123: add retry logic". Capture
// groups: prefix up to the checkbox mark, the mark itself, the rest of the
// line, and the PR number.
var checklistLineRe = regexp.MustCompile(`^(\s*[-*]\s+\[)( |x|X)(\]\s*.*?#(\d+).*)$`)

// ChecklistUpdater marks checklist entries done once GitHub reports their
// pull request as merged. Lines whose PR is not merged stay byte-identical.
type ChecklistUpdater struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
}

// NewChecklistUpdater creates a new ChecklistUpdater instance.
func NewChecklistUpdater(fetcher gateway.Fetcher, logger *log.Logger) *ChecklistUpdater {
	return &ChecklistUpdater{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Update rewrites the checklist at path, ticking every unchecked entry whose
// PR number GitHub reports as merged. With dryRun the file is left untouched
// and the returned update describes what would change. Entries referencing
// PRs closed without merge are reported as stale but never rewritten.
func (u *ChecklistUpdater) Update(ctx context.Context, owner, repo, path string, dryRun bool) (*domain.ChecklistUpdate, error) {
	u.logger.Printf("Usecase: Updating checklist %s from %s/%s...", path, owner, repo)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checklist file: %w", err)
	}

	// Split keeping the terminator on each line so the rewrite can never
	// change line endings or the presence of a trailing newline.
	lines := splitAfterNewlines(string(data))

	update := &domain.ChecklistUpdate{Path: path, DryRun: dryRun}
	unchecked := 0
	for i, line := range lines {
		item, ok := parseChecklistLine(line)
		if !ok {
			continue
		}
		item.Line = i + 1
		update.Items = append(update.Items, item)
		if !item.Checked {
			unchecked++
		}
	}
	if unchecked == 0 {
		u.logger.Println("Usecase: No unchecked PR entries, nothing to do.")
		return update, nil
	}

	// Fetch merged and closed-unmerged sets concurrently.
	var merged map[int]time.Time
	var closedUnmerged map[int]bool

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		merged, err = u.fetcher.FetchMergedPRs(egCtx, owner, repo)
		return err
	})
	eg.Go(func() error {
		var err error
		closedUnmerged, err = u.fetcher.FetchClosedUnmergedPRs(egCtx, owner, repo)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, item := range update.Items {
		if item.Checked {
			continue
		}
		if _, ok := merged[item.PRNumber]; ok {
			lines[item.Line-1] = tickLine(lines[item.Line-1])
			update.Ticked = append(update.Ticked, item.PRNumber)
			update.Changed = true
		} else if closedUnmerged[item.PRNumber] {
			update.Stale = append(update.Stale, item.PRNumber)
		}
	}

	if update.Changed && !dryRun {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat checklist file: %w", err)
		}
		if err := os.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("failed to write checklist file: %w", err)
		}
	}

	u.logger.Printf("Usecase: Checklist update complete: %d ticked, %d stale.", len(update.Ticked), len(update.Stale))
	return update, nil
}

// splitAfterNewlines splits s into lines, each retaining its trailing "\n"
// (and "\r\n" stays intact inside the line). Joining the result with ""
// reproduces s exactly.
func splitAfterNewlines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// parseChecklistLine extracts a checklist item from one raw line (terminator
// included). The second return value is false for lines that are not PR
// checkbox entries.
func parseChecklistLine(raw string) (domain.ChecklistItem, bool) {
	text := strings.TrimRight(raw, "\r\n")
	m := checklistLineRe.FindStringSubmatch(text)
	if m == nil {
		return domain.ChecklistItem{}, false
	}
	number, err := strconv.Atoi(m[4])
	if err != nil {
		return domain.ChecklistItem{}, false
	}
	return domain.ChecklistItem{
		PRNumber: number,
		Checked:  m[2] != " ",
		Text:     text,
	}, true
}

// tickLine replaces the unchecked mark with "x", preserving everything else
// including the line terminator.
func tickLine(raw string) string {
	terminator := raw[len(strings.TrimRight(raw, "\r\n")):]
	text := strings.TrimRight(raw, "\r\n")
	m := checklistLineRe.FindStringSubmatch(text)
	if m == nil || m[2] != " " {
		return raw
	}
	return m[1] + "x" + m[3] + terminator
}
