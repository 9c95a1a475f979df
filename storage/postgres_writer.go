package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/gustakei/lave/models"
)

// PostgresWriter persists the latest scrape report's exported rows to
// PostgreSQL. Each write replaces the previous report, so the table always
// holds the most recent run.
type PostgresWriter struct {
	db *sql.DB
}

// UnitTotal is one unit's aggregate as stored in the database.
type UnitTotal struct {
	UnitID  string
	Total   float64
	RowDays int
	Error   string
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS report_rows (
			id         SERIAL PRIMARY KEY,
			unit_id    VARCHAR(100) NOT NULL,
			row_date   VARCHAR(10)  NOT NULL DEFAULT '',
			kg         NUMERIC(12,2),
			unit_total NUMERIC(12,2) NOT NULL DEFAULT 0,
			error      TEXT          NOT NULL DEFAULT '',
			scraped_at TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_report_rows_unit ON report_rows(unit_id);
		CREATE INDEX IF NOT EXISTS idx_report_rows_date ON report_rows(row_date);
	`)
	return err
}

// Clear deletes the previously stored report.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM report_rows")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// WriteReport batch-inserts the report's exported rows, clearing the
// previous report first. Units without rows get a placeholder row so their
// totals and errors survive the export.
func (pw *PostgresWriter) WriteReport(results []*models.UnitResult) error {
	if err := pw.Clear(); err != nil {
		return err
	}

	type exportRow struct {
		unitID  string
		rowDate string
		kg      sql.NullFloat64
		total   float64
		errText string
	}

	var rows []exportRow
	for _, result := range results {
		if len(result.Rows) == 0 {
			rows = append(rows, exportRow{
				unitID:  result.UnitID,
				total:   result.Total,
				errText: result.Error,
			})
			continue
		}
		for _, row := range result.Rows {
			kg := sql.NullFloat64{}
			if row.Kg != nil {
				kg = sql.NullFloat64{Float64: *row.Kg, Valid: true}
			}
			rows = append(rows, exportRow{
				unitID:  result.UnitID,
				rowDate: row.Date,
				kg:      kg,
				total:   result.Total,
				errText: result.Error,
			})
		}
	}

	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]

		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*5)
		for idx, r := range batch {
			base := idx * 5
			valueStrings = append(valueStrings,
				fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
					base+1, base+2, base+3, base+4, base+5))
			valueArgs = append(valueArgs, r.unitID, r.rowDate, r.kg, r.total, r.errText)
		}

		query := fmt.Sprintf(`
			INSERT INTO report_rows (unit_id, row_date, kg, unit_total, error)
			VALUES %s
		`, strings.Join(valueStrings, ","))

		if _, err := pw.db.Exec(query, valueArgs...); err != nil {
			return fmt.Errorf("postgres: insert batch: %w", err)
		}
	}
	return nil
}

// FetchUnitTotals aggregates the stored report per unit, used by the
// dashboard.
func (pw *PostgresWriter) FetchUnitTotals() ([]UnitTotal, error) {
	rows, err := pw.db.Query(`
		SELECT unit_id,
		       MAX(unit_total),
		       COUNT(NULLIF(row_date, '')),
		       MAX(error)
		FROM report_rows
		GROUP BY unit_id
		ORDER BY unit_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch unit totals: %w", err)
	}
	defer rows.Close()

	var totals []UnitTotal
	for rows.Next() {
		var t UnitTotal
		if err := rows.Scan(&t.UnitID, &t.Total, &t.RowDays, &t.Error); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Close closes the database connection.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
