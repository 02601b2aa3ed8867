// Package ui implements a terminal queue monitor using bubbletea's Elm architecture.
//
// The monitor has two views:
//  1. [MonitorView] : one row per task with a progress bar, speed and ETA, plus the queue depth
//  2. [HistoryView] : a filterable list of finished and failed tasks
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Events flow in from a [tasks.Reporter] subscription, or from a remote server's websocket stream, one message at a time.
//
// Keyboard navigation uses vim-style bindings (j/k, tab, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
