package store

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"bgp-cmdb/pkg/model"
)

// MemoryStore is a simple in-memory implementation, intended for dev/demo and tests.
// Transactions are serialized and work on a copy of the tables, so a failed
// transaction leaves no trace. Foreign keys behave like ON DELETE RESTRICT constraints.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[model.Kind]map[uint]model.Record
	nextID map[model.Kind]uint
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		tables: make(map[model.Kind]map[uint]model.Record),
		nextID: make(map[model.Kind]uint),
	}
	for _, k := range model.Kinds {
		m.tables[k] = make(map[uint]model.Record)
	}
	return m
}

func (m *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{
		tables: make(map[model.Kind]map[uint]model.Record, len(m.tables)),
		nextID: maps.Clone(m.nextID),
	}
	for k, rows := range m.tables {
		tx.tables[k] = maps.Clone(rows)
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.tables = tx.tables
	m.nextID = tx.nextID
	return nil
}

// Ping reports readiness for health endpoints.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// memoryTx stores clones only, so records handed out can be mutated freely by callers.
type memoryTx struct {
	tables map[model.Kind]map[uint]model.Record
	nextID map[model.Kind]uint
}

func (t *memoryTx) rows(kind model.Kind) (map[uint]model.Record, error) {
	rows, ok := t.tables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return rows, nil
}

func (t *memoryTx) Get(_ context.Context, kind model.Kind, id uint) (model.Record, error) {
	rows, err := t.rows(kind)
	if err != nil {
		return nil, err
	}
	rec, ok := rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", kind, id, model.ErrNotFound)
	}
	return model.Clone(rec), nil
}

func (t *memoryTx) Find(_ context.Context, kind model.Kind, where Filter) ([]model.Record, error) {
	rows, err := t.rows(kind)
	if err != nil {
		return nil, err
	}
	out := []model.Record{}
	for _, id := range slices.Sorted(maps.Keys(rows)) {
		rec := rows[id]
		ok, err := matchAll(rec, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, model.Clone(rec))
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, rec model.Record) error {
	rows, err := t.rows(rec.Kind())
	if err != nil {
		return err
	}
	if err := t.checkWrite(rec, 0); err != nil {
		return err
	}
	t.nextID[rec.Kind()]++
	rec.SetKey(t.nextID[rec.Kind()])
	stamp(rec, nil)
	rows[rec.Key()] = model.Clone(rec)
	return nil
}

func (t *memoryTx) Update(_ context.Context, rec model.Record) error {
	rows, err := t.rows(rec.Kind())
	if err != nil {
		return err
	}
	prev, ok := rows[rec.Key()]
	if !ok {
		return fmt.Errorf("%s %d: %w", rec.Kind(), rec.Key(), model.ErrNotFound)
	}
	if err := t.checkWrite(rec, rec.Key()); err != nil {
		return err
	}
	rec = model.Clone(rec)
	stamp(rec, prev)
	rows[rec.Key()] = rec
	return nil
}

func (t *memoryTx) Delete(_ context.Context, kind model.Kind, id uint) error {
	rows, err := t.rows(kind)
	if err != nil {
		return err
	}
	if _, ok := rows[id]; !ok {
		return nil
	}
	target := model.Ref{Kind: kind, ID: id}
	for k, other := range t.tables {
		for _, rec := range other {
			for col, ref := range model.References(rec) {
				if ref == target {
					return fmt.Errorf("%s still referenced by %s %d (%s): %w", target, k, rec.Key(), col, ErrForeignKey)
				}
			}
		}
	}
	delete(rows, id)
	return nil
}

func (t *memoryTx) Lock(_ context.Context, kind model.Kind, id uint) (bool, error) {
	rows, err := t.rows(kind)
	if err != nil {
		return false, err
	}
	_, ok := rows[id]
	return ok, nil
}

func (t *memoryTx) Referrers(_ context.Context, kind model.Kind, columns []string, id uint) ([]uint, error) {
	rows, err := t.rows(kind)
	if err != nil {
		return nil, err
	}
	var out []uint
	for _, rid := range slices.Sorted(maps.Keys(rows)) {
		cols := rows[rid].Columns()
		for _, c := range columns {
			v, ok := cols[c]
			if !ok {
				return nil, fmt.Errorf("unknown column %s.%s", kind, c)
			}
			if ref, _ := v.(uint); ref == id {
				out = append(out, rid)
				break
			}
		}
	}
	return out, nil
}

// checkWrite enforces foreign keys and unique keys for rec; self is the id being updated.
func (t *memoryTx) checkWrite(rec model.Record, self uint) error {
	for col, ref := range model.References(rec) {
		if _, ok := t.tables[ref.Kind][ref.ID]; !ok {
			return fmt.Errorf("%s.%s references missing %s: %w", rec.Kind(), col, ref, ErrForeignKey)
		}
	}
	u, ok := rec.(model.Uniquer)
	if !ok {
		return nil
	}
	keys := u.UniqueKeys()
	for id, other := range t.tables[rec.Kind()] {
		if id == self {
			continue
		}
		for _, k := range other.(model.Uniquer).UniqueKeys() {
			if slices.Contains(keys, k) {
				return fmt.Errorf("%s %s: %w", rec.Kind(), k, ErrDuplicate)
			}
		}
	}
	return nil
}

// stamp fills CreatedAt on insert and keeps the stored value on update, as the gorm store does.
func stamp(rec, prev model.Record) {
	f := reflect.ValueOf(rec).Elem().FieldByName("CreatedAt")
	if !f.IsValid() || !f.CanSet() {
		return
	}
	if prev != nil {
		f.Set(reflect.ValueOf(prev).Elem().FieldByName("CreatedAt"))
		return
	}
	if f.Interface().(time.Time).IsZero() {
		f.Set(reflect.ValueOf(time.Now()))
	}
}

func matchAll(rec model.Record, where Filter) (bool, error) {
	cols := rec.Columns()
	for col, want := range where {
		v, ok := cols[col]
		if !ok {
			return false, fmt.Errorf("unknown column %s.%s", rec.Kind(), col)
		}
		if !matches(v, want) {
			return false, nil
		}
	}
	return true, nil
}

func matches(v, want any) bool {
	rv := reflect.ValueOf(want)
	if rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if fmt.Sprint(v) == fmt.Sprint(rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(want)
}
