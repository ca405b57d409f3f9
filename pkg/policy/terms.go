// Package policy validates route-policy term batches and plans how a stored term set
// becomes the desired one.
package policy

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"bgp-cmdb/pkg/model"
)

// ValidateTerms checks a full term batch. When no term passes its own validation the
// batch is rejected with the single aggregate problem; otherwise every invalid term is
// reported once, with its batch index.
func ValidateTerms(terms []model.RoutePolicyTerm) error {
	valid := 0
	var problems []model.Problem
	for i := range terms {
		ps := terms[i].Validate()
		if len(ps) == 0 {
			valid++
			continue
		}
		problems = append(problems, termProblem(i, ps))
	}
	if valid == 0 {
		return &model.ValidationError{Problems: []model.Problem{{Index: -1, Message: model.MsgAtLeastOneTerm}}}
	}
	return model.AsValidation(problems)
}

// termProblem folds the problems of one term into a single message. A lone problem keeps
// its field.
func termProblem(index int, ps []model.Problem) model.Problem {
	if len(ps) == 1 {
		return model.Problem{Index: index, Field: ps[0].Field, Message: ps[0].Message}
	}
	msgs := make([]string, 0, len(ps))
	for _, p := range ps {
		msgs = append(msgs, p.Field+": "+p.Message)
	}
	return model.Problem{Index: index, Message: strings.Join(msgs, "; ")}
}

// SortTerms orders terms for evaluation: ascending sequence, then creation order.
func SortTerms(terms []model.RoutePolicyTerm) {
	slices.SortStableFunc(terms, func(a, b model.RoutePolicyTerm) int {
		if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Plan is the set of writes turning the stored terms of a policy into the desired ones.
type Plan struct {
	Create []model.RoutePolicyTerm
	Update []model.RoutePolicyTerm
	Delete []uint
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Diff plans the writes for policyID. A desired term with ID 0 is created, one carrying the
// ID of a current term replaces it, and current terms missing from desired are deleted.
// IDs that do not belong to the policy, or appear twice, are reported as problems.
func Diff(policyID uint, current, desired []model.RoutePolicyTerm) (Plan, error) {
	byID := make(map[uint]model.RoutePolicyTerm, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}
	var (
		plan     Plan
		problems []model.Problem
		kept     = map[uint]bool{}
	)
	for i, t := range desired {
		t.RoutePolicyID = policyID
		if t.ID == 0 {
			plan.Create = append(plan.Create, t)
			continue
		}
		cur, ok := byID[t.ID]
		switch {
		case !ok:
			problems = append(problems, model.Problem{Index: i, Field: "id", Message: fmt.Sprintf("term %d does not belong to this policy", t.ID)})
			continue
		case kept[t.ID]:
			problems = append(problems, model.Problem{Index: i, Field: "id", Message: fmt.Sprintf("term %d listed twice", t.ID)})
			continue
		}
		kept[t.ID] = true
		t.CreatedAt = cur.CreatedAt
		if !reflect.DeepEqual(t, cur) {
			plan.Update = append(plan.Update, t)
		}
	}
	if err := model.AsValidation(problems); err != nil {
		return Plan{}, err
	}
	for _, t := range current {
		if !kept[t.ID] {
			plan.Delete = append(plan.Delete, t.ID)
		}
	}
	return plan, nil
}
