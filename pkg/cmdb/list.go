package cmdb

import (
	"cmp"
	"context"
	"net/url"
	"slices"
	"strconv"

	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

type filterType int

const (
	filterText filterType = iota
	filterID
	filterInt
)

// listFilters are the query parameters accepted by List, per kind. Parameter names are
// the column names.
var listFilters = map[model.Kind]map[string]filterType{
	model.KindDevice:           {"name": filterText},
	model.KindTenant:           {"name": filterText},
	model.KindIPAddress:        {"address": filterText},
	model.KindASN:              {"number": filterInt, "organization_name": filterText},
	model.KindRoutePolicy:      {"device_id": filterID, "name": filterText},
	model.KindRoutePolicyTerm:  {"route_policy_id": filterID, "decision": filterText},
	model.KindBGPPeerGroup:     {"device_id": filterID, "name": filterText},
	model.KindDeviceBGPSession: {"device_id": filterID, "peer_group_id": filterID},
	model.KindBGPSession:       {"state": filterText, "monitoring_state": filterText, "tenant_id": filterID, "device_id": filterID},
}

// List returns rows of kind matching q, ordered by id. Repeated parameters match any of
// their values. BGP sessions filtered by device_id match when either endpoint is on one
// of the devices.
func (s *Service) List(ctx context.Context, kind model.Kind, q url.Values) ([]model.Record, error) {
	where, err := parseFilter(kind, q)
	if err != nil {
		return nil, err
	}
	var out []model.Record
	err = s.store.Transaction(ctx, func(tx store.Tx) error {
		devices, byDevice := where["device_id"]
		if kind != model.KindBGPSession || !byDevice {
			out, err = tx.Find(ctx, kind, where)
			return err
		}
		delete(where, "device_id")
		out, err = sessionsOnDevices(ctx, tx, devices, where)
		return err
	})
	return out, err
}

func sessionsOnDevices(ctx context.Context, tx store.Tx, devices any, where store.Filter) ([]model.Record, error) {
	eps, err := tx.Find(ctx, model.KindDeviceBGPSession, store.Filter{"device_id": devices})
	if err != nil {
		return nil, err
	}
	out := []model.Record{}
	if len(eps) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(eps))
	for _, ep := range eps {
		ids = append(ids, ep.Key())
	}
	seen := map[uint]bool{}
	for _, col := range []string{"peer_a_id", "peer_b_id"} {
		f := store.Filter{col: ids}
		for k, v := range where {
			f[k] = v
		}
		rows, err := tx.Find(ctx, model.KindBGPSession, f)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if !seen[r.Key()] {
				seen[r.Key()] = true
				out = append(out, r)
			}
		}
	}
	slices.SortFunc(out, func(a, b model.Record) int { return cmp.Compare(a.Key(), b.Key()) })
	return out, nil
}

func parseFilter(kind model.Kind, q url.Values) (store.Filter, error) {
	allowed, ok := listFilters[kind]
	if !ok {
		return nil, model.NewValidationError("kind", "unknown kind %q", kind)
	}
	where := store.Filter{}
	var problems []model.Problem
	for name, values := range q {
		typ, ok := allowed[name]
		if !ok {
			problems = append(problems, model.Problem{Index: -1, Field: name, Message: "unknown filter"})
			continue
		}
		parsed := make([]any, 0, len(values))
		for _, v := range values {
			switch typ {
			case filterID:
				n, err := strconv.ParseUint(v, 10, 0)
				if err != nil {
					problems = append(problems, model.Problem{Index: -1, Field: name, Message: "must be an id"})
					continue
				}
				parsed = append(parsed, uint(n))
			case filterInt:
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					problems = append(problems, model.Problem{Index: -1, Field: name, Message: "must be an integer"})
					continue
				}
				parsed = append(parsed, n)
			default:
				parsed = append(parsed, v)
			}
		}
		switch len(parsed) {
		case 0:
		case 1:
			where[name] = parsed[0]
		default:
			where[name] = parsed
		}
	}
	if err := model.AsValidation(problems); err != nil {
		return nil, err
	}
	return where, nil
}
