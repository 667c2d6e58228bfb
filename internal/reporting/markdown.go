package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as Markdown string.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Distribution Run %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Mint | %s |\n", r.Mint))
	sb.WriteString(fmt.Sprintf("| Mode | %s |\n", r.Mode))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Status))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", r.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Recipients | %d |\n", r.TotalRecipients))
	sb.WriteString(fmt.Sprintf("| Confirmed | %d |\n", r.Confirmed))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.Failed))
	sb.WriteString(fmt.Sprintf("| Amount Confirmed | %d |\n", r.AmountConfirmed))
	sb.WriteString(fmt.Sprintf("| Total Retries | %d |\n", r.TotalRetries))
	sb.WriteString("\n")

	// Records
	if len(r.Records) > 0 {
		sb.WriteString("## Records\n\n")
		sb.WriteString("| Recipient | Amount | Status | Transaction | Retries | Error |\n")
		sb.WriteString("|-----------|--------|--------|-------------|---------|-------|\n")
		for _, rec := range r.Records {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %d | %s |\n",
				rec.Recipient, rec.Amount, rec.Status, rec.TransactionID, rec.RetryCount, rec.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
