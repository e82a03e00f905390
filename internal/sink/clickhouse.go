package sink

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TwinGuard/internal/config"
	"TwinGuard/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS verdicts (
    VerdictID   String,
    ScoredAt    DateTime,
    DeviceID    String,
    Seq         Int64,
    Label       String,
    Confidence  Float64,
    ModelClass  Int32,
    ModelProb   Float64,
    VitalsLevel String,
    Reasons     String,
    PktCount    UInt64,
    ByteCount   UInt64,
    Duration    Float64,
    Rate        Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(ScoredAt)
ORDER BY (DeviceID, ScoredAt);
`

// ClickHouseWriter persists verdict records to a ClickHouse audit table.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects, ensures the table exists and returns the
// writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create verdicts table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured verdicts table exists.")

	return &ClickHouseWriter{conn: conn}, nil
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
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
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

// Write inserts one verdict record.
func (w *ClickHouseWriter) Write(rec model.VerdictRecord) error {
	err := w.conn.Exec(context.Background(),
		`INSERT INTO verdicts (VerdictID, ScoredAt, DeviceID, Seq, Label, Confidence,
		 ModelClass, ModelProb, VitalsLevel, Reasons, PktCount, ByteCount, Duration, Rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ScoredAt,
		rec.DeviceID,
		rec.Seq,
		rec.Verdict.Label,
		rec.Verdict.Confidence,
		int32(rec.Verdict.Model.PredictedClass),
		rec.Verdict.Model.AttackProbability,
		string(rec.Verdict.Vitals.Level),
		strings.Join(rec.Verdict.Vitals.Reasons, "; "),
		rec.Flow.PktCount,
		rec.Flow.ByteCount,
		rec.Flow.Duration,
		rec.Flow.Rate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verdict record: %w", err)
	}
	return nil
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
