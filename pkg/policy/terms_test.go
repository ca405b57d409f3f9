package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"bgp-cmdb/pkg/model"
)

func permit(seq int) model.RoutePolicyTerm {
	return model.RoutePolicyTerm{Sequence: seq, Decision: model.DecisionPermit}
}

func problems(t *testing.T, err error) []model.Problem {
	t.Helper()
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Problems
}

func TestValidateTermsEmptyBatch(t *testing.T) {
	ps := problems(t, ValidateTerms(nil))
	require.Equal(t, []model.Problem{{Index: -1, Message: model.MsgAtLeastOneTerm}}, ps)
}

func TestValidateTermsAllInvalidYieldsAggregate(t *testing.T) {
	bad := model.RoutePolicyTerm{Sequence: 10, Decision: "maybe"}
	ps := problems(t, ValidateTerms([]model.RoutePolicyTerm{bad, bad}))
	require.Len(t, ps, 1)
	require.Equal(t, model.MsgAtLeastOneTerm, ps[0].Message)
	require.Equal(t, -1, ps[0].Index)
}

func TestValidateTermsReportsEachInvalidTerm(t *testing.T) {
	terms := []model.RoutePolicyTerm{
		permit(10),
		{Sequence: 20, Decision: "maybe"},
		{Sequence: 30, Decision: model.DecisionDeny, SetNextHop: "not-an-ip"},
	}
	ps := problems(t, ValidateTerms(terms))
	require.Len(t, ps, 2)
	require.Equal(t, 1, ps[0].Index)
	require.Equal(t, "decision", ps[0].Field)
	require.Equal(t, 2, ps[1].Index)
	require.Equal(t, "setNextHop", ps[1].Field)
}

func TestValidateTermsReportsOneProblemPerTerm(t *testing.T) {
	terms := []model.RoutePolicyTerm{
		permit(10),
		{Sequence: -1, Decision: "maybe", SetOrigin: "bogus"},
	}
	ps := problems(t, ValidateTerms(terms))
	require.Len(t, ps, 1)
	require.Equal(t, 1, ps[0].Index)
	require.Empty(t, ps[0].Field)
	require.Contains(t, ps[0].Message, "sequence: must not be negative")
	require.Contains(t, ps[0].Message, "decision: must be one of")
	require.Contains(t, ps[0].Message, "setOrigin: must be one of")
}

func TestValidateTermsAcceptsValidBatch(t *testing.T) {
	terms := []model.RoutePolicyTerm{
		permit(10),
		{
			Sequence:               20,
			Decision:               model.DecisionDeny,
			FromBGPCommunity:       "65000:100 no-export",
			SetLargeCommunity:      "65000:1:2",
			SetASPathPrependASN:    65000,
			SetASPathPrependRepeat: model.Int(3),
			SetNextHop:             "self",
		},
	}
	require.NoError(t, ValidateTerms(terms))
}

func TestSortTermsIsStableOnSequenceTies(t *testing.T) {
	terms := []model.RoutePolicyTerm{
		{ID: 3, Sequence: 20},
		{ID: 2, Sequence: 10},
		{ID: 1, Sequence: 20},
		{ID: 4, Sequence: 5},
	}
	SortTerms(terms)
	var ids []uint
	for _, term := range terms {
		ids = append(ids, term.ID)
	}
	require.Equal(t, []uint{4, 2, 1, 3}, ids)
}

func TestDiff(t *testing.T) {
	current := []model.RoutePolicyTerm{
		{ID: 1, RoutePolicyID: 7, Sequence: 10, Decision: model.DecisionPermit},
		{ID: 2, RoutePolicyID: 7, Sequence: 20, Decision: model.DecisionPermit},
		{ID: 3, RoutePolicyID: 7, Sequence: 30, Decision: model.DecisionDeny},
	}
	desired := []model.RoutePolicyTerm{
		{ID: 1, Sequence: 10, Decision: model.DecisionPermit},
		{ID: 2, Sequence: 25, Decision: model.DecisionPermit},
		permit(40),
	}
	plan, err := Diff(7, current, desired)
	require.NoError(t, err)
	require.Len(t, plan.Create, 1)
	require.Equal(t, uint(7), plan.Create[0].RoutePolicyID)
	require.Len(t, plan.Update, 1)
	require.Equal(t, uint(2), plan.Update[0].ID)
	require.Equal(t, 25, plan.Update[0].Sequence)
	require.Equal(t, []uint{3}, plan.Delete)
	require.False(t, plan.Empty())
}

func TestDiffUnchanged(t *testing.T) {
	current := []model.RoutePolicyTerm{
		{ID: 1, RoutePolicyID: 7, Sequence: 10, Decision: model.DecisionPermit, SetMetric: model.Int(5)},
	}
	desired := []model.RoutePolicyTerm{
		{ID: 1, Sequence: 10, Decision: model.DecisionPermit, SetMetric: model.Int(5)},
	}
	plan, err := Diff(7, current, desired)
	require.NoError(t, err)
	require.True(t, plan.Empty())
}

func TestDiffRejectsForeignAndDuplicateIDs(t *testing.T) {
	current := []model.RoutePolicyTerm{{ID: 1, RoutePolicyID: 7, Sequence: 10, Decision: model.DecisionPermit}}
	desired := []model.RoutePolicyTerm{
		{ID: 1, Sequence: 10, Decision: model.DecisionPermit},
		{ID: 1, Sequence: 20, Decision: model.DecisionPermit},
		{ID: 9, Sequence: 30, Decision: model.DecisionPermit},
	}
	_, err := Diff(7, current, desired)
	ps := problems(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, 1, ps[0].Index)
	require.Equal(t, 2, ps[1].Index)
}
