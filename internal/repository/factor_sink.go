package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	pkgkafka "FinFactor/pkg/kafka"
)

// FactorRecord is one (date, asset, period) row of a run's clean factor data.
type FactorRecord struct {
	RunID         string    `json:"run_id"`
	Date          time.Time `json:"date"`
	Asset         string    `json:"asset"`
	Group         string    `json:"group,omitempty"`
	Factor        float64   `json:"factor"`
	Quantile      int       `json:"factor_quantile"`
	Period        int       `json:"period"`
	ForwardReturn float64   `json:"forward_return"`
}

// Records flattens data into one record per row and holding period.
func Records(runID string, data *models.FactorData) []FactorRecord {
	if data == nil {
		return nil
	}
	out := make([]FactorRecord, 0, len(data.Rows)*len(data.Periods))
	for _, r := range data.Rows {
		for j, p := range data.Periods {
			out = append(out, FactorRecord{
				RunID:         runID,
				Date:          r.Date,
				Asset:         r.Asset,
				Group:         r.Group,
				Factor:        r.Factor,
				Quantile:      r.Quantile,
				Period:        p,
				ForwardReturn: r.Returns[j],
			})
		}
	}
	return out
}

// FactorSchema returns the DDL of the factor data table.
func FactorSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            run_id          String,
            date            Date,
            asset           LowCardinality(String),
            grp             LowCardinality(String),
            factor          Float64,
            factor_quantile UInt8,
            period          UInt16,
            forward_return  Float64,
            inserted_at     DateTime DEFAULT now()
        ) ENGINE = MergeTree
        ORDER BY (run_id, date, asset, period)
    `, table)}
}

// CHFactorSink writes factor records into ClickHouse.
type CHFactorSink struct {
	db        *sql.DB
	table     string
	chunkSize int
}

func NewCHFactorSink(db *sql.DB, table string) *CHFactorSink {
	return &CHFactorSink{db: db, table: table, chunkSize: 2000}
}

// Write inserts the records in multi-row batches.
func (s *CHFactorSink) Write(ctx context.Context, runID string, data *models.FactorData) error {
	recs := Records(runID, data)
	for start := 0; start < len(recs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, r := range recs[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.RunID, r.Date, r.Asset, r.Group, r.Factor, r.Quantile, r.Period, r.ForwardReturn)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, date, asset, grp, factor, factor_quantile, period, forward_return) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert factor data: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the pool is owned by the clickhouse client.
func (s *CHFactorSink) Close() error { return nil }

type batchPublisher interface {
	PublishBatch(ctx context.Context, msgs []pkgkafka.Message) error
	Close() error
}

// KafkaFactorSink publishes factor records keyed by asset.
type KafkaFactorSink struct {
	producer batchPublisher
}

func NewKafkaFactorSink(p batchPublisher) *KafkaFactorSink {
	return &KafkaFactorSink{producer: p}
}

func (k *KafkaFactorSink) Write(ctx context.Context, runID string, data *models.FactorData) error {
	recs := Records(runID, data)
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = pkgkafka.Message{Key: []byte(r.Asset), Value: r}
	}
	if err := k.producer.PublishBatch(ctx, msgs); err != nil {
		return fmt.Errorf("publish factor data: %w", err)
	}
	return nil
}

func (k *KafkaFactorSink) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) Write(context.Context, string, *models.FactorData) error { return nil }
func (NoopSink) Close() error                                            { return nil }

var (
	_ domrepo.FactorSink = (*CHFactorSink)(nil)
	_ domrepo.FactorSink = (*KafkaFactorSink)(nil)
	_ domrepo.FactorSink = NoopSink{}
)
