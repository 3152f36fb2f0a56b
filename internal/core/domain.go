package core

import (
	"errors"
	"strings"
)

const (
	// Transaction statuses. Completed and failed are terminal.
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"

	// Recurring giving statuses.
	RecurringActive RecurringStatus = "active"
	RecurringPaused RecurringStatus = "paused"

	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	TransactionStatus string
	RecurringStatus   string
	Frequency         string

	Money struct {
		Cents int64
	}

	// Gift is the user-entered input for a single giving submission.
	Gift struct {
		Amount   Money
		Category string
	}

	// Transaction is a giving transaction as reported by the server.
	// Date carries the server-provided timestamp verbatim; parsing it is a
	// display concern and malformed values must survive the round trip.
	Transaction struct {
		ID       string
		Category string
		Amount   Money
		Date     string
		Status   TransactionStatus
		Receipt  string
	}

	RecurringGiving struct {
		ID       int64
		Category string
		Amount   Money
		Every    Frequency
		NextDate string
		Status   RecurringStatus
	}

	Pledge struct {
		ID          int64
		Description string
		Target      Money
		Paid        Money
		TargetDate  string
	}

	GivingCategory struct {
		ID          int64
		Name        string
		Description string
	}

	Church struct {
		ID       int64
		Name     string
		Location string
	}

	Notification struct {
		ID        int64
		Title     string
		Body      string
		CreatedAt string
		Read      bool
	}

	Profile struct {
		Name     string
		Phone    string
		Email    string
		ChurchID int64
	}

	// FinancialSummary is derived server-side and read-only here.
	FinancialSummary struct {
		TotalIncome    Money
		TotalExpenses  Money
		YearlyIncome   Money
		YearlyExpenses Money
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty giving category")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (g Gift) Validate() error {
	if err := g.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsTerminal reports whether the status will not change again.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return errors.New("invalid frequency: " + string(f))
	}
}

// Progress returns paid/target. The value is deliberately unclamped: an
// over-paid pledge reports progress above 1.0 and the cap is a display
// decision.
func (p Pledge) Progress() float64 {
	if p.Target.Cents <= 0 {
		return 0
	}
	return float64(p.Paid.Cents) / float64(p.Target.Cents)
}

// Balance returns income minus expenses for the reporting period.
func (s FinancialSummary) Balance() Money {
	return Money{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
}

// YearlyBalance returns the year-to-date balance.
func (s FinancialSummary) YearlyBalance() Money {
	return Money{Cents: s.YearlyIncome.Cents - s.YearlyExpenses.Cents}
}
