// Package display maps domain records into presentation-ready rows. It is
// pure: no I/O, no errors, formatting delegated to a collaborator.
package display

import (
	"time"

	"altarfunds/internal/core"
)

// Formatter renders amounts and dates for a presentation surface.
type Formatter interface {
	FormatAmount(amount core.Money) string
	FormatDate(t time.Time) string
}

// Row is one transaction prepared for display.
type Row struct {
	ID        string                 `json:"id"`
	Category  string                 `json:"category"`
	Amount    string                 `json:"amount"`
	Date      string                 `json:"date"`
	Status    core.TransactionStatus `json:"status"`
	Receipt   string                 `json:"receipt,omitempty"`
	Completed bool                   `json:"completed"`
}

// Accepted server date layouts, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Project maps transactions to rows one-to-one, preserving order. A date
// string that matches no known layout is passed through verbatim rather
// than dropped or replaced; a malformed timestamp must not hide the record.
func Project(txs []core.Transaction, f Formatter) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, Row{
			ID:        tx.ID,
			Category:  tx.Category,
			Amount:    f.FormatAmount(tx.Amount),
			Date:      formatDate(tx.Date, f),
			Status:    tx.Status,
			Receipt:   tx.Receipt,
			Completed: tx.Status == core.StatusCompleted,
		})
	}
	return rows
}

func formatDate(raw string, f Formatter) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return f.FormatDate(t)
		}
	}
	return raw
}
