package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bgp-cmdb/pkg/model"
)

// GormStore keeps the CMDB in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Transaction runs fn at repeatable read. Together with the locking reads done by Lock and
// Referrers this keeps concurrent writers from inserting a referrer after it was checked.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

func newRecord(kind model.Kind) (model.Record, error) {
	rec := model.New(kind)
	if rec == nil {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return rec, nil
}

func (t *gormTx) Get(ctx context.Context, kind model.Kind, id uint) (model.Record, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	if err := t.db.WithContext(ctx).First(rec, id).Error; err != nil {
		return nil, translate(kind, id, err)
	}
	return rec, nil
}

func (t *gormTx) Find(ctx context.Context, kind model.Kind, where Filter) ([]model.Record, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	dest := reflect.New(reflect.SliceOf(reflect.TypeOf(rec).Elem()))
	q := t.db.WithContext(ctx).Model(rec)
	if len(where) > 0 {
		q = q.Where(map[string]any(where))
	}
	if err := q.Order("id").Find(dest.Interface()).Error; err != nil {
		return nil, err
	}
	rows := dest.Elem()
	out := make([]model.Record, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		out = append(out, rows.Index(i).Addr().Interface().(model.Record))
	}
	return out, nil
}

func (t *gormTx) Insert(ctx context.Context, rec model.Record) error {
	return translate(rec.Kind(), 0, t.db.WithContext(ctx).Create(rec).Error)
}

func (t *gormTx) Update(ctx context.Context, rec model.Record) error {
	ok, err := t.Lock(ctx, rec.Kind(), rec.Key())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", rec.Kind(), rec.Key(), model.ErrNotFound)
	}
	err = t.db.WithContext(ctx).Model(rec).Select("*").Omit("id", "created_at").Updates(rec).Error
	return translate(rec.Kind(), rec.Key(), err)
}

func (t *gormTx) Delete(ctx context.Context, kind model.Kind, id uint) error {
	rec, err := newRecord(kind)
	if err != nil {
		return err
	}
	return translate(kind, id, t.db.WithContext(ctx).Delete(rec, id).Error)
}

func (t *gormTx) Lock(ctx context.Context, kind model.Kind, id uint) (bool, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return false, err
	}
	var ids []uint
	err = t.db.WithContext(ctx).Model(rec).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (t *gormTx) Referrers(ctx context.Context, kind model.Kind, columns []string, id uint) ([]uint, error) {
	rec, err := newRecord(kind)
	if err != nil {
		return nil, err
	}
	conds := make([]clause.Expression, 0, len(columns))
	for _, c := range columns {
		conds = append(conds, clause.Eq{Column: clause.Column{Name: c}, Value: id})
	}
	var ids []uint
	err = t.db.WithContext(ctx).Model(rec).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Or(conds...)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// translate maps gorm's portable errors onto the store's.
func translate(kind model.Kind, id uint, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s %d: %w", kind, id, model.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", kind, ErrDuplicate)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s %d: %w", kind, id, ErrForeignKey)
	}
	return err
}
