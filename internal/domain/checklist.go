package domain

// ChecklistItem is a single checkbox line in a PR review checklist that
// references a pull request number.
type ChecklistItem struct {
	Line     int    `json:"line"`
	PRNumber int    `json:"pr_number"`
	Checked  bool   `json:"checked"`
	Text     string `json:"text"`
}

// ChecklistUpdate summarizes what a checklist rewrite did (or would do).
type ChecklistUpdate struct {
	Path    string          `json:"path"`
	Items   []ChecklistItem `json:"items"`
	Ticked  []int           `json:"ticked"`
	Stale   []int           `json:"stale"`
	Changed bool            `json:"changed"`
	DryRun  bool            `json:"dry_run"`
}
