// maintenance_report exports the maintenance schedule from a console
// database as CSV, optionally limited to tasks due before a cutoff date.
// Useful for handing a work list to a facilities team without API access.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn            string
	organizationID string
	dueBefore      string
	outDir         string
}

type scheduleRow struct {
	DeviceID        string
	DeviceName      string
	TaskName        string
	Frequency       string
	Priority        string
	EstimatedMins   int
	LastMaintenance sql.NullTime
	NextMaintenance sql.NullTime
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	cutoff, err := parseCutoff(cfg.dueBefore)
	if err != nil {
		log.Fatalf("invalid due-before: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	rows, err := loadSchedule(context.Background(), db, cfg.organizationID, cutoff)
	if err != nil {
		log.Fatalf("load schedule: %v", err)
	}
	path := filepath.Join(cfg.outDir, "maintenance_schedule.csv")
	if err := writeSchedule(path, rows); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	log.Printf("maintenance report written: rows=%d path=%s", len(rows), path)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.organizationID, "org", envOrDefault("ORGANIZATION_ID", ""), "limit to one organization")
	flag.StringVar(&cfg.dueBefore, "due-before", envOrDefault("DUE_BEFORE", ""), "only tasks due before this date (YYYY-MM-DD, empty for all)")
	flag.StringVar(&cfg.outDir, "out-dir", envOrDefault("OUT_DIR", "."), "output directory")
	flag.Parse()
	return cfg
}

func parseCutoff(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

func loadSchedule(ctx context.Context, db *sql.DB, organizationID string, cutoff time.Time) ([]scheduleRow, error) {
	query := `
SELECT m.device_id, d.name, m.task_name, m.frequency, m.priority,
	m.estimated_mins, m.last_maintenance, m.next_maintenance
FROM maintenance_items m
JOIN devices d ON d.id = m.device_id`
	var conditions []string
	var args []any
	if organizationID != "" {
		args = append(args, organizationID)
		conditions = append(conditions, "d.organization_id = $"+strconv.Itoa(len(args)))
	}
	if !cutoff.IsZero() {
		args = append(args, cutoff)
		conditions = append(conditions, "m.next_maintenance IS NOT NULL AND m.next_maintenance < $"+strconv.Itoa(len(args)))
	}
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\nORDER BY m.next_maintenance ASC NULLS LAST, d.name ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduleRow
	for rows.Next() {
		var row scheduleRow
		if err := rows.Scan(
			&row.DeviceID,
			&row.DeviceName,
			&row.TaskName,
			&row.Frequency,
			&row.Priority,
			&row.EstimatedMins,
			&row.LastMaintenance,
			&row.NextMaintenance,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func writeSchedule(path string, rows []scheduleRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"device_id",
		"device_name",
		"task_name",
		"frequency",
		"priority",
		"estimated_mins",
		"last_maintenance",
		"next_maintenance",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.DeviceID,
			row.DeviceName,
			row.TaskName,
			row.Frequency,
			row.Priority,
			strconv.Itoa(row.EstimatedMins),
			formatNullTime(row.LastMaintenance),
			formatNullTime(row.NextMaintenance),
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatNullTime(value sql.NullTime) string {
	if !value.Valid {
		return ""
	}
	return value.Time.UTC().Format(time.RFC3339)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
