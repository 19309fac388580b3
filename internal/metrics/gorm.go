package metrics

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const startKey = "metrics:start"

// InstrumentDB times every insert, select, update and delete statement run
// through db.
func (m *Metrics) InstrumentDB(db *gorm.DB) error {
	if m == nil {
		return nil
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			if start, ok := v.(time.Time); ok {
				m.ObserveDBQuery(operation, tx.Statement.Table, start)
			}
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("metrics:insert_start", before),
		cb.Create().After("gorm:create").Register("metrics:insert_end", after("insert")),
		cb.Query().Before("gorm:query").Register("metrics:select_start", before),
		cb.Query().After("gorm:query").Register("metrics:select_end", after("select")),
		cb.Update().Before("gorm:update").Register("metrics:update_start", before),
		cb.Update().After("gorm:update").Register("metrics:update_end", after("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:delete_start", before),
		cb.Delete().After("gorm:delete").Register("metrics:delete_end", after("delete")),
	)
}
