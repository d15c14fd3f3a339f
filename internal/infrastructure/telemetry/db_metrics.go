package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records query latency and errors, and observes pool statistics.
type DBMetrics struct {
	queryDuration *Histogram
	queryCount    *Counter
	queryErrors   *Counter
	registration  metric.Registration
	logger        *zap.Logger
}

// NewDBMetrics creates the database instruments. sqlDB may be nil, in which
// case pool statistics are not observed.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, logger *zap.Logger) (*DBMetrics, error) {
	m := &DBMetrics{logger: logger}

	var err error
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db.query.duration",
		Description: "Duration of database queries",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.queryCount, err = NewCounter(meter, "db.query.count", "Number of database queries", "{query}"); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "db.query.errors", "Number of failed database queries", "{error}"); err != nil {
		return nil, err
	}

	if sqlDB != nil {
		connections, err := meter.Int64ObservableGauge("db.pool.connections",
			metric.WithDescription("Database pool connections by state"),
			metric.WithUnit("{connection}"),
		)
		if err != nil {
			return nil, err
		}
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			stats := sqlDB.Stats()
			o.ObserveInt64(connections, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
			o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
			o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
			return nil
		}, connections)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Stop unregisters the pool statistics callback.
func (m *DBMetrics) Stop() {
	if m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.logger.Warn("Failed to unregister pool stats callback", zap.Error(err))
	}
}

// Register installs the timing callbacks on db.
func (m *DBMetrics) Register(db *gorm.DB) error {
	return registerAround(db, "otel_metrics", markQueryStart, m.record)
}

func (m *DBMetrics) record(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	elapsed, ok := queryElapsed(ctx)
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		AttrDBOperation.String(operationOf(tx.Statement.SQL.String())),
		AttrDBTable.String(tx.Statement.Table),
	}
	m.queryDuration.RecordDuration(ctx, elapsed, attrs...)
	m.queryCount.Inc(ctx, attrs...)
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
}

// operationOf returns the lowercased leading SQL verb
func operationOf(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "unknown"
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "select", "insert", "update", "delete", "with":
		return verb
	default:
		return "other"
	}
}
