// Package reporting renders finalized distribution results for operators.
package reporting

import (
	"time"

	"spl-distributor/internal/domain"
)

// RunReport is the render-ready view of one finalized run.
type RunReport struct {
	// Metadata
	RunID       string
	GeneratedAt time.Time
	CreatedAt   time.Time
	Mint        string
	Mode        string
	Status      string

	// Aggregates
	TotalRecipients int
	Confirmed       int
	Failed          int
	AmountConfirmed uint64
	TotalRetries    int

	// Per-recipient rows, in execution order
	Records []RecordRow
}

// RecordRow represents one row in the records table.
type RecordRow struct {
	Recipient     string
	Amount        uint64
	Status        string
	TransactionID string
	Error         string
	RetryCount    int
}

// NewRunReport builds a report from a finalized result.
func NewRunReport(result *domain.DistributionResult) *RunReport {
	report := &RunReport{
		RunID:           result.ID,
		GeneratedAt:     time.Now().UTC(),
		CreatedAt:       result.CreatedAt,
		Mint:            result.Mint.String(),
		Mode:            string(result.Mode),
		Status:          string(result.Status),
		TotalRecipients: len(result.Records),
	}

	for _, rec := range result.Records {
		switch rec.Status {
		case domain.RecordConfirmed:
			report.Confirmed++
			report.AmountConfirmed += rec.Amount
		case domain.RecordFailed:
			report.Failed++
		}
		report.TotalRetries += rec.RetryCount

		report.Records = append(report.Records, RecordRow{
			Recipient:     rec.Recipient.String(),
			Amount:        rec.Amount,
			Status:        string(rec.Status),
			TransactionID: rec.TransactionID,
			Error:         rec.Error,
			RetryCount:    rec.RetryCount,
		})
	}

	return report
}

// WithClock overrides GeneratedAt for deterministic output.
func (r *RunReport) WithClock(now func() time.Time) *RunReport {
	r.GeneratedAt = now()
	return r
}
