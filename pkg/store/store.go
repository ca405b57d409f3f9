package store

import (
	"context"
	"errors"

	"bgp-cmdb/pkg/model"
)

var (
	// ErrDuplicate is returned when a write violates a unique key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrForeignKey is returned when a write or delete would leave a dangling reference.
	ErrForeignKey = errors.New("foreign key violation")
)

// Filter restricts a Find to rows whose columns equal the given values.
// A slice value matches any of its elements.
type Filter map[string]any

// Store is the persistence layer of the CMDB. All access goes through a transaction.
type Store interface {
	// Transaction runs fn in one transaction at repeatable read or stronger. The transaction
	// commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// Get returns model.ErrNotFound when the row does not exist.
	Get(ctx context.Context, kind model.Kind, id uint) (model.Record, error)
	// Find returns matching rows ordered by id.
	Find(ctx context.Context, kind model.Kind, where Filter) ([]model.Record, error)
	// Insert assigns the new id to rec.
	Insert(ctx context.Context, rec model.Record) error
	// Update returns model.ErrNotFound when the row does not exist.
	Update(ctx context.Context, rec model.Record) error
	Delete(ctx context.Context, kind model.Kind, id uint) error
	// Lock reports whether the row exists and holds it until the transaction ends.
	Lock(ctx context.Context, kind model.Kind, id uint) (bool, error)
	// Referrers returns the ids of rows of kind where any of columns equals id, ordered by id.
	// Matching rows stay locked until the transaction ends.
	Referrers(ctx context.Context, kind model.Kind, columns []string, id uint) ([]uint, error)
}
