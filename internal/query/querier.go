package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TwinGuard/internal/config"
)

// VerdictRow is one scored event as read back from the audit table.
type VerdictRow struct {
	VerdictID   string    `json:"verdict_id"`
	ScoredAt    time.Time `json:"scored_at"`
	DeviceID    string    `json:"device_id"`
	Seq         int64     `json:"seq"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	VitalsLevel string    `json:"vitals_level"`
	Reasons     string    `json:"reasons,omitempty"`
}

// DeviceSummary aggregates verdict counts per device.
type DeviceSummary struct {
	DeviceID    string    `json:"device_id"`
	Total       uint64    `json:"total"`
	Attacks     uint64    `json:"attacks"`
	LastVerdict time.Time `json:"last_verdict"`
}

// Querier defines the read side of the verdict audit table.
type Querier interface {
	RecentVerdicts(ctx context.Context, deviceID string, limit int) ([]VerdictRow, error)
	SummarizeDevices(ctx context.Context, since time.Time) ([]DeviceSummary, error)
	Close() error
}

type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a querier over the verdicts table.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// RecentVerdicts returns the latest verdicts, newest first, optionally
// filtered to one device.
func (q *clickhouseQuerier) RecentVerdicts(ctx context.Context, deviceID string, limit int) ([]VerdictRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT VerdictID, ScoredAt, DeviceID, Seq, Label, Confidence, VitalsLevel, Reasons
		FROM verdicts
	`)

	args := []interface{}{}
	if deviceID != "" {
		queryBuilder.WriteString(" WHERE DeviceID = ?")
		args = append(args, deviceID)
	}
	queryBuilder.WriteString(" ORDER BY ScoredAt DESC LIMIT ?")
	args = append(args, limit)

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []VerdictRow
	for rows.Next() {
		var row VerdictRow
		if err := rows.Scan(&row.VerdictID, &row.ScoredAt, &row.DeviceID, &row.Seq,
			&row.Label, &row.Confidence, &row.VitalsLevel, &row.Reasons); err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}
		out = append(out, row)
	}

	return out, nil
}

// SummarizeDevices returns per-device verdict counts since the given time.
func (q *clickhouseQuerier) SummarizeDevices(ctx context.Context, since time.Time) ([]DeviceSummary, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			DeviceID,
			COUNT(*) AS Total,
			countIf(Label = 'ATTACK') AS Attacks,
			max(ScoredAt) AS LastVerdict
		FROM verdicts
	`)

	args := []interface{}{}
	if !since.IsZero() {
		queryBuilder.WriteString(" WHERE ScoredAt >= ?")
		args = append(args, since)
	}
	queryBuilder.WriteString(" GROUP BY DeviceID ORDER BY LastVerdict DESC")

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []DeviceSummary
	for rows.Next() {
		var s DeviceSummary
		if err := rows.Scan(&s.DeviceID, &s.Total, &s.Attacks, &s.LastVerdict); err != nil {
			return nil, fmt.Errorf("failed to scan device summary: %w", err)
		}
		out = append(out, s)
	}

	return out, nil
}

// Close closes the connection.
func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
