package database

import (
	"errors"
	"time"

	"ripple/internal/observability"

	"gorm.io/gorm"
)

const startedAtKey = "ripple:started_at"

func beforeStatement(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func afterStatement(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}
		table := "unknown"
		if db.Statement != nil && db.Statement.Table != "" {
			table = db.Statement.Table
		}
		observability.DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())
	}
}

// registerMetricsCallbacks observes every statement's latency by operation and table.
func registerMetricsCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("metrics:before_create", beforeStatement),
		cb.Create().After("gorm:create").Register("metrics:after_create", afterStatement("create")),
		cb.Query().Before("gorm:query").Register("metrics:before_query", beforeStatement),
		cb.Query().After("gorm:query").Register("metrics:after_query", afterStatement("query")),
		cb.Update().Before("gorm:update").Register("metrics:before_update", beforeStatement),
		cb.Update().After("gorm:update").Register("metrics:after_update", afterStatement("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:before_delete", beforeStatement),
		cb.Delete().After("gorm:delete").Register("metrics:after_delete", afterStatement("delete")),
		cb.Row().Before("gorm:row").Register("metrics:before_row", beforeStatement),
		cb.Row().After("gorm:row").Register("metrics:after_row", afterStatement("row")),
		cb.Raw().Before("gorm:raw").Register("metrics:before_raw", beforeStatement),
		cb.Raw().After("gorm:raw").Register("metrics:after_raw", afterStatement("raw")),
	)
}
