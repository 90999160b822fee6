package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

const monthlySummariesTable = "monthly_summaries"

// ExportMonthlySummariesWithClient replaces the exported rows of every month
// present in rows.
func ExportMonthlySummariesWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*MonthlySummaryRow) error {
	if len(rows) == 0 {
		return nil
	}

	months := make([]civil.Date, len(rows))
	for i, r := range rows {
		months[i] = r.Month
	}

	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE month IN UNNEST(@months)
	`, dataset, monthlySummariesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "months", Value: months},
	}
	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("ExportMonthlySummaries: deleting previous rows: %w", err)
	}

	inserter := client.Dataset(dataset).Table(monthlySummariesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("ExportMonthlySummaries: inserting rows: %w", err)
	}

	return nil
}

// ListExportedMonthsWithClient returns every exported month, oldest first.
func ListExportedMonthsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]civil.Date, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT month
		FROM %s.%s
		ORDER BY month
	`, dataset, monthlySummariesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExportedMonths: query read: %w", err)
	}

	var months []civil.Date
	for {
		var r struct {
			Month civil.Date `bigquery:"month"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExportedMonths: iter next: %w", err)
		}
		months = append(months, r.Month)
	}

	return months, nil
}
