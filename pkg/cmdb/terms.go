package cmdb

import (
	"context"
	"errors"
	"fmt"

	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/policy"
	"bgp-cmdb/pkg/store"
)

// SavePolicyWithTerms creates or updates p together with its complete term list, in one
// transaction. Terms carrying an id replace the stored term with that id, terms without
// one are created, and stored terms left out are deleted. The policy must end up with at
// least one valid term. On success p holds the stored policy and the stored terms are
// returned in evaluation order.
func (s *Service) SavePolicyWithTerms(ctx context.Context, p *model.RoutePolicy, terms []model.RoutePolicyTerm) ([]model.RoutePolicyTerm, error) {
	var problems []model.Problem
	problems = append(problems, p.Validate()...)
	var verr *model.ValidationError
	if err := policy.ValidateTerms(terms); errors.As(err, &verr) {
		problems = append(problems, verr.Problems...)
	}
	if err := model.AsValidation(problems); err != nil {
		return nil, s.rejected(model.ActionSaveTerms, err)
	}

	var (
		saved   []model.RoutePolicyTerm
		plan    policy.Plan
		created = p.ID == 0
	)
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		var prev model.Record
		if p.ID != 0 {
			var err error
			if prev, err = tx.Get(ctx, model.KindRoutePolicy, p.ID); err != nil {
				return err
			}
		}
		if err := s.check(ctx, tx, p, prev); err != nil {
			return err
		}
		if prev == nil {
			if err := storeError(tx.Insert(ctx, p)); err != nil {
				return err
			}
		} else if err := storeError(tx.Update(ctx, p)); err != nil {
			return err
		}

		current, err := loadTerms(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if plan, err = policy.Diff(p.ID, current, terms); err != nil {
			return err
		}
		for _, id := range plan.Delete {
			if err := tx.Delete(ctx, model.KindRoutePolicyTerm, id); err != nil {
				return fmt.Errorf("delete term %d: %w", id, err)
			}
		}
		for i := range plan.Update {
			if err := tx.Update(ctx, &plan.Update[i]); err != nil {
				return fmt.Errorf("update term %d: %w", plan.Update[i].ID, err)
			}
		}
		for i := range plan.Create {
			if err := tx.Insert(ctx, &plan.Create[i]); err != nil {
				return fmt.Errorf("create term: %w", err)
			}
		}
		if saved, err = loadTerms(ctx, tx, p.ID); err != nil {
			return err
		}
		stored, err := tx.Get(ctx, model.KindRoutePolicy, p.ID)
		if err != nil {
			return err
		}
		*p = *stored.(*model.RoutePolicy)
		return nil
	})
	if err != nil {
		if created {
			p.ID = 0
		}
		return nil, s.rejected(model.ActionSaveTerms, err)
	}
	s.log.WithField("id", p.ID).WithField("terms", len(saved)).Info("route policy saved")
	s.record(ctx, model.ActionSaveTerms, model.RefOf(p),
		fmt.Sprintf("created=%d updated=%d deleted=%d", len(plan.Create), len(plan.Update), len(plan.Delete)))
	return saved, nil
}

// Terms returns the terms of a route policy in evaluation order.
func (s *Service) Terms(ctx context.Context, policyID uint) ([]model.RoutePolicyTerm, error) {
	var out []model.RoutePolicyTerm
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Get(ctx, model.KindRoutePolicy, policyID); err != nil {
			return err
		}
		var err error
		out, err = loadTerms(ctx, tx, policyID)
		return err
	})
	return out, err
}

func loadTerms(ctx context.Context, tx store.Tx, policyID uint) ([]model.RoutePolicyTerm, error) {
	rows, err := tx.Find(ctx, model.KindRoutePolicyTerm, store.Filter{"route_policy_id": policyID})
	if err != nil {
		return nil, err
	}
	terms := make([]model.RoutePolicyTerm, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, *r.(*model.RoutePolicyTerm))
	}
	policy.SortTerms(terms)
	return terms, nil
}
