// Package cmdb is the typed service layer of the BGP CMDB. Every write goes through it:
// creates and updates are validated against the data model, deletes run through the
// cascade engine, and route-policy terms are only ever saved as a whole batch.
package cmdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bgp-cmdb/pkg/cascade"
	"bgp-cmdb/pkg/journal"
	"bgp-cmdb/pkg/metrics"
	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

// Listener is notified of every change after it has been committed.
type Listener interface {
	Publish(e model.JournalEntry)
}

type Service struct {
	store     store.Store
	engine    *cascade.Engine
	journal   journal.Journal
	listeners []Listener
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*Service)

// WithJournal replaces the default in-memory journal.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

func WithListener(l Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.log = l }
}

// WithGraph replaces the deletion policy graph.
func WithGraph(g cascade.Graph) Option {
	return func(s *Service) { s.engine = cascade.NewEngine(g) }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		engine:  cascade.NewEngine(cascade.DefaultGraph()),
		journal: journal.NewMemory(journal.DefaultCapacity),
		log:     logrus.WithField("component", "cmdb"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Recent returns the latest journal entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	return s.journal.Recent(ctx, limit)
}

// Get returns one row.
func (s *Service) Get(ctx context.Context, kind model.Kind, id uint) (model.Record, error) {
	var rec model.Record
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.Get(ctx, kind, id)
		return err
	})
	return rec, err
}

// Create inserts rec and assigns its id. Route policies and their terms are created
// through SavePolicyWithTerms instead.
func (s *Service) Create(ctx context.Context, rec model.Record) error {
	switch rec.Kind() {
	case model.KindRoutePolicy:
		return s.rejected(model.ActionCreate, &model.ValidationError{Problems: []model.Problem{{Index: -1, Field: "terms", Message: model.MsgAtLeastOneTerm}}})
	case model.KindRoutePolicyTerm:
		return s.rejected(model.ActionCreate, model.NewValidationError("routePolicyId", "terms are saved with their route policy"))
	}
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		if err := s.check(ctx, tx, rec, nil); err != nil {
			return err
		}
		return storeError(tx.Insert(ctx, rec))
	})
	if err != nil {
		return s.rejected(model.ActionCreate, err)
	}
	s.record(ctx, model.ActionCreate, model.RefOf(rec), "")
	return nil
}

// UpdateOption adjusts a single Update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	keepPassword bool
}

// KeepPassword makes an update of a BGP session keep the stored password instead of the
// one carried by the record.
func KeepPassword() UpdateOption {
	return func(o *updateOptions) { o.keepPassword = true }
}

// Update replaces the stored row with rec and returns the stored result. Terms are
// edited through SavePolicyWithTerms.
func (s *Service) Update(ctx context.Context, rec model.Record, opts ...UpdateOption) (model.Record, error) {
	if rec.Kind() == model.KindRoutePolicyTerm {
		return nil, s.rejected(model.ActionUpdate, model.NewValidationError("routePolicyId", "terms are saved with their route policy"))
	}
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	var out model.Record
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		prev, err := tx.Get(ctx, rec.Kind(), rec.Key())
		if err != nil {
			return err
		}
		if sess, ok := rec.(*model.BGPSession); ok && o.keepPassword {
			sess.Password = prev.(*model.BGPSession).Password
		}
		if err := s.check(ctx, tx, rec, prev); err != nil {
			return err
		}
		if err := storeError(tx.Update(ctx, rec)); err != nil {
			return err
		}
		out, err = tx.Get(ctx, rec.Kind(), rec.Key())
		return err
	})
	if err != nil {
		return nil, s.rejected(model.ActionUpdate, err)
	}
	s.record(ctx, model.ActionUpdate, model.RefOf(rec), "")
	return out, nil
}

// Delete removes the row and everything the deletion policy cascades to, in one
// transaction. Deleting a row that does not exist succeeds with an empty result.
// A route policy's last term cannot be deleted on its own.
func (s *Service) Delete(ctx context.Context, ref model.Ref) (cascade.Result, error) {
	var res cascade.Result
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		if ref.Kind == model.KindRoutePolicyTerm {
			if err := s.checkLastTerm(ctx, tx, ref.ID); err != nil {
				return err
			}
		}
		var err error
		res, err = s.engine.Delete(ctx, tx, ref)
		return err
	})
	log := s.log.WithFields(logrus.Fields{"kind": ref.Kind, "id": ref.ID})
	if err != nil {
		var inUse *model.InUseError
		if errors.As(err, &inUse) {
			metrics.DeletesRefused.WithLabelValues(string(inUse.Kind), string(inUse.Referrer)).Inc()
			log.WithError(err).Warn("delete refused")
			return cascade.Result{}, err
		}
		return cascade.Result{}, s.rejected(model.ActionDelete, err)
	}
	if len(res.Removed) == 0 {
		log.Debug("delete of missing row")
		return res, nil
	}
	counts := res.Counts()
	for kind, n := range counts {
		metrics.RowsDeleted.WithLabelValues(string(kind)).Add(float64(n))
	}
	log.WithField("removed", len(res.Removed)).Info("deleted")
	s.record(ctx, model.ActionDelete, ref, formatCounts(counts))
	return res, nil
}

func (s *Service) checkLastTerm(ctx context.Context, tx store.Tx, id uint) error {
	rec, err := tx.Get(ctx, model.KindRoutePolicyTerm, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	policyID := rec.(*model.RoutePolicyTerm).RoutePolicyID
	if _, err := tx.Lock(ctx, model.KindRoutePolicy, policyID); err != nil {
		return err
	}
	siblings, err := tx.Referrers(ctx, model.KindRoutePolicyTerm, []string{"route_policy_id"}, policyID)
	if err != nil {
		return err
	}
	if len(siblings) <= 1 {
		return &model.ValidationError{Problems: []model.Problem{{Index: -1, Message: model.MsgAtLeastOneTerm}}}
	}
	return nil
}

// rejected counts validation failures before handing err back.
func (s *Service) rejected(op string, err error) error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		metrics.ValidationRejections.WithLabelValues(op).Inc()
		s.log.WithField("operation", op).WithError(err).Debug("write rejected")
	}
	return err
}

// record journals a committed change and notifies listeners. Journal failures are logged only.
func (s *Service) record(ctx context.Context, action string, ref model.Ref, detail string) {
	e := model.JournalEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Kind:      ref.Kind,
		TargetID:  ref.ID,
		Detail:    detail,
		Timestamp: s.now().UTC(),
	}
	if err := s.journal.Append(ctx, e); err != nil {
		s.log.WithError(err).WithField("entry", e.ID).Error("journal append failed")
	}
	for _, l := range s.listeners {
		l.Publish(e)
	}
}

func formatCounts(counts map[model.Kind]int) string {
	parts := make([]string, 0, len(counts))
	for kind, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// storeError turns constraint violations reported by the store into validation errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return model.NewValidationError("", "already exists")
	case errors.Is(err, store.ErrForeignKey):
		return model.NewValidationError("", "references a missing row")
	}
	return err
}
