package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = historyItem{}

// historyItem is a finished or failed task shown in [HistoryView].
type historyItem struct {
	row taskRow
}

func (i historyItem) FilterValue() string { return i.row.name() }
func (i historyItem) Title() string {
	if i.row.status == statusFailed {
		return "✗ " + i.row.name()
	}
	return "✓ " + i.row.name()
}
func (i historyItem) Description() string {
	if i.row.status == statusFailed {
		return fmt.Sprintf("%s • %s", i.row.resourceID, i.row.detail)
	}
	return i.row.detail
}
