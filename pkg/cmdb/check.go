package cmdb

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

// check validates rec before it is written. prev is the stored row on update, nil on create.
// Referenced rows are locked so they cannot be deleted before the write commits.
func (s *Service) check(ctx context.Context, tx store.Tx, rec model.Record, prev model.Record) error {
	var problems []model.Problem
	add := func(field, format string, args ...any) {
		problems = append(problems, model.Problem{Index: -1, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	if v, ok := rec.(model.Validator); ok {
		problems = append(problems, v.Validate()...)
	}

	cols := rec.Columns()
	device, scoped := cols["device_id"].(uint)
	if prev != nil && scoped && prev.Columns()["device_id"] != cols["device_id"] {
		add("deviceId", "cannot be changed")
	}

	refs := model.References(rec)
	for _, col := range slices.Sorted(maps.Keys(refs)) {
		ref := refs[col]
		ok, err := tx.Lock(ctx, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if !ok {
			add(fieldName(col), "%s %d does not exist", ref.Kind, ref.ID)
			continue
		}
		if !scoped || col == "device_id" {
			continue
		}
		if ref.Kind != model.KindRoutePolicy && ref.Kind != model.KindBGPPeerGroup {
			continue
		}
		target, err := tx.Get(ctx, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if target.Columns()["device_id"] != device {
			add(fieldName(col), "%s %d belongs to another device", ref.Kind, ref.ID)
		}
	}

	if sess, ok := rec.(*model.BGPSession); ok {
		for _, ep := range []struct {
			field string
			id    uint
		}{{"peerAId", sess.PeerAID}, {"peerBId", sess.PeerBID}} {
			if ep.id == 0 {
				continue
			}
			ids, err := tx.Referrers(ctx, model.KindBGPSession, []string{"peer_a_id", "peer_b_id"}, ep.id)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if id != sess.ID {
					add(ep.field, "device session %d is already used by BGP session %d", ep.id, id)
					break
				}
			}
		}
	}
	return model.AsValidation(problems)
}

// fieldName maps a column name onto the JSON field name, e.g. local_asn_id to localAsnId.
func fieldName(col string) string {
	parts := strings.Split(col, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
