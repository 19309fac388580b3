// Package store is the table-level data access client shared by the catalog
// and enrollment services.
//
// Reads never treat "no rows" as a failure: Query leaves an empty slice and
// First reports found=false. Every failure is a *Error whose Kind tells an
// unreachable store (ErrUnavailable) from a refused operation (ErrRejected).
//
//	client := store.New(db, store.WithTransactions(true))
//	var courses []entities.Course
//	err := client.Query(ctx, entities.TableCourses, &courses,
//		store.Filter{"id": ids}, store.OrderBy("created_at DESC"))
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Record is implemented by entities that carry a numeric primary key.
type Record interface {
	RecordID() uint
}

type Client struct {
	db            *gorm.DB
	transactional bool
	inTx          bool
}

type Option func(*Client)

// WithTransactions makes Transaction run its callback inside a database
// transaction. Without it every step commits on its own.
func WithTransactions(enabled bool) Option {
	return func(c *Client) { c.transactional = enabled }
}

func New(db *gorm.DB, opts ...Option) *Client {
	c := &Client{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transactional reports whether multi-step writes are atomic.
func (c *Client) Transactional() bool {
	return c.transactional
}

// Query reads every row of table matching filter into dest, a pointer to a slice.
func (c *Client) Query(ctx context.Context, table string, dest any, filter Filter, opts ...QueryOption) error {
	q, none := c.read(ctx, table, filter, opts)
	if none {
		return nil
	}
	if err := q.Find(dest).Error; err != nil {
		return wrap("query", table, err)
	}
	return nil
}

// First reads at most one row into dest, a pointer to a struct.
func (c *Client) First(ctx context.Context, table string, dest any, filter Filter, opts ...QueryOption) (bool, error) {
	q, none := c.read(ctx, table, filter, opts)
	if none {
		return false, nil
	}
	res := q.Limit(1).Find(dest)
	if res.Error != nil {
		return false, wrap("first", table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Insert writes record, a pointer to an entity, and returns its new id.
func (c *Client) Insert(ctx context.Context, table string, record Record) (uint, error) {
	if err := c.db.WithContext(ctx).Table(table).Create(record).Error; err != nil {
		return 0, wrap("insert", table, err)
	}
	return record.RecordID(), nil
}

// InsertBatch writes records, a pointer to a slice of entities, in one statement.
func (c *Client) InsertBatch(ctx context.Context, table string, records any) error {
	if err := c.db.WithContext(ctx).Table(table).Create(records).Error; err != nil {
		return wrap("insert", table, err)
	}
	return nil
}

// Update applies partial to the row with the given id. updated is false when
// no row matched.
func (c *Client) Update(ctx context.Context, table string, id uint, partial map[string]any) (bool, error) {
	if len(partial) == 0 {
		return false, wrap("update", table, errors.New("no columns to update"))
	}
	res := c.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(partial)
	if res.Error != nil {
		return false, wrap("update", table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the rows matching filter and returns how many went away.
// An empty filter is refused rather than clearing the table.
func (c *Client) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, wrap("delete", table, errors.New("refusing to delete without a filter"))
	}
	q, none := filter.apply(c.db.WithContext(ctx).Table(table))
	if none {
		return 0, nil
	}
	res := q.Delete(map[string]any{})
	if res.Error != nil {
		return 0, wrap("delete", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (c *Client) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	q, none := filter.apply(c.db.WithContext(ctx).Table(table))
	if none {
		return 0, nil
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, wrap("count", table, err)
	}
	return n, nil
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return wrap("ping", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return wrap("ping", "", err)
	}
	return nil
}

// Transaction runs fn with a client bound to a single transaction when the
// client is transactional: an error from fn rolls every step back. Otherwise
// fn runs against c directly and each step commits independently.
// Errors returned by fn are passed through unchanged.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Client) error) error {
	if !c.transactional || c.inTx {
		return fn(c)
	}

	var fnErr error
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&Client{db: tx, transactional: true, inTx: true})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return wrap("transaction", "", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (c *Client) read(ctx context.Context, table string, filter Filter, opts []QueryOption) (*gorm.DB, bool) {
	q, none := filter.apply(c.db.WithContext(ctx).Table(table))
	if none {
		return q, true
	}
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.apply(q), false
}
