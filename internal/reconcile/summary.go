package reconcile

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Override92/tid3/internal/track"
)

// Summary renders the current comparison as a deterministic table of
// field, original value, new value, and status. Intended for export and
// clipboard copy; decision logic never reads it. Returns an empty string
// when no comparison has been built.
func (e *Engine) Summary(tr *track.LocalTrack) string {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})

	tw.AppendHeader(table.Row{"Field", "Original", "New", "Status"})
	for _, item := range s.items {
		tw.AppendRow(table.Row{
			string(item.Field),
			item.OldValue,
			item.NewValue,
			string(item.Status()),
		})
	}

	return tw.Render()
}
