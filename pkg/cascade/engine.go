package cascade

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

// Engine executes delete requests against a policy graph.
type Engine struct {
	graph Graph
}

func NewEngine(g Graph) *Engine {
	return &Engine{graph: g}
}

// Result lists the rows removed by one request, in deletion order.
type Result struct {
	Removed []model.Ref `json:"removed"`
}

// Count returns how many rows of kind were removed.
func (r Result) Count(kind model.Kind) int {
	n := 0
	for _, ref := range r.Removed {
		if ref.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns removed rows per kind.
func (r Result) Counts() map[model.Kind]int {
	out := map[model.Kind]int{}
	for _, ref := range r.Removed {
		out[ref.Kind]++
	}
	return out
}

// Delete removes target and everything the graph cascades to, inside tx.
//
// It first collects the full set of rows to remove, then checks every restrict edge of
// every collected row, and only then deletes, dependents first. A referrer that is part
// of the collected set does not block the request. Deleting a row that does not exist is
// a no-op. On error nothing has been deleted; callers roll tx back all the same.
func (e *Engine) Delete(ctx context.Context, tx store.Tx, target model.Ref) (Result, error) {
	ok, err := tx.Lock(ctx, target.Kind, target.ID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, nil
	}
	c := &collector{
		graph: e.graph,
		tx:    tx,
		seen:  map[model.Ref]bool{},
	}
	if err := c.collect(ctx, target, true); err != nil {
		return Result{}, err
	}
	if err := c.check(ctx); err != nil {
		return Result{}, err
	}
	for _, ref := range c.order {
		if err := tx.Delete(ctx, ref.Kind, ref.ID); err != nil {
			return Result{}, fmt.Errorf("delete %s: %w", ref, err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"target":  target.String(),
		"removed": len(c.order),
	}).Debug("cascade delete applied")
	return Result{Removed: c.order}, nil
}

type restriction struct {
	source model.Ref
	edge   Edge
}

type collector struct {
	graph    Graph
	tx       store.Tx
	seen     map[model.Ref]bool
	order    []model.Ref
	restrict []restriction
}

func (c *collector) collect(ctx context.Context, ref model.Ref, root bool) error {
	if c.seen[ref] {
		return nil
	}
	c.seen[ref] = true
	var after []model.Ref
	for _, edge := range c.graph[ref.Kind] {
		switch edge.Policy {
		case Restrict:
			c.restrict = append(c.restrict, restriction{source: ref, edge: edge})
			continue
		case CascadeRoot:
			if !root {
				continue
			}
		}
		ids, err := c.related(ctx, ref, edge)
		if err != nil {
			return err
		}
		for _, id := range ids {
			dep := model.Ref{Kind: edge.Dependent, ID: id}
			if edge.Forward {
				after = append(after, dep)
				continue
			}
			if err := c.collect(ctx, dep, false); err != nil {
				return err
			}
		}
	}
	c.order = append(c.order, ref)
	for _, dep := range after {
		if err := c.collect(ctx, dep, false); err != nil {
			return err
		}
	}
	return nil
}

func (c *collector) related(ctx context.Context, ref model.Ref, edge Edge) ([]uint, error) {
	if !edge.Forward {
		return c.tx.Referrers(ctx, edge.Dependent, edge.Columns, ref.ID)
	}
	rec, err := c.tx.Get(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	cols := rec.Columns()
	var ids []uint
	for _, col := range edge.Columns {
		id, _ := cols[col].(uint)
		if id == 0 || containsID(ids, id) {
			continue
		}
		if ok, err := c.tx.Lock(ctx, edge.Dependent, id); err != nil {
			return nil, err
		} else if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *collector) check(ctx context.Context) error {
	for _, r := range c.restrict {
		ids, err := c.tx.Referrers(ctx, r.edge.Dependent, r.edge.Columns, r.source.ID)
		if err != nil {
			return err
		}
		blocking := 0
		for _, id := range ids {
			if !c.seen[model.Ref{Kind: r.edge.Dependent, ID: id}] {
				blocking++
			}
		}
		if blocking > 0 {
			return &model.InUseError{
				Kind:     r.source.Kind,
				ID:       r.source.ID,
				Referrer: r.edge.Dependent,
				Columns:  r.edge.Columns,
				Count:    blocking,
			}
		}
	}
	return nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
