package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the per-recipient records as CSV string.
func RenderCSV(r *RunReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,recipient,amount,status,transaction_id,error,retry_count\n")

	// Rows
	for _, rec := range r.Records {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%d\n",
			r.RunID,
			rec.Recipient,
			rec.Amount,
			rec.Status,
			rec.TransactionID,
			escapeCSV(rec.Error),
			rec.RetryCount,
		))
	}

	return sb.String()
}

// escapeCSV quotes a field containing commas, quotes or newlines.
func escapeCSV(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
