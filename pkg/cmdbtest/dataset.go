// Package cmdbtest builds the reference dataset used across the CMDB tests.
package cmdbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

// Dataset holds the rows of the reference dataset: three routers, each with one ASN,
// one peer group, one route policy and two device sessions, and three BGP sessions
// pairing routers 1-2, 1-3 and 2-3.
type Dataset struct {
	Devices        []*model.Device
	Tenants        []*model.Tenant
	ASNs           []*model.ASN
	Addresses      []*model.IPAddress
	PeerGroups     []*model.BGPPeerGroup
	RoutePolicies  []*model.RoutePolicy
	Terms          []*model.RoutePolicyTerm
	DeviceSessions []*model.DeviceBGPSession
	Sessions       []*model.BGPSession
}

// Load inserts the reference dataset into st.
func Load(t testing.TB, st store.Store) *Dataset {
	t.Helper()
	d := &Dataset{}
	err := st.Transaction(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		insert := func(rec model.Record) {
			require.NoError(t, tx.Insert(ctx, rec))
		}
		for i := 0; i < 3; i++ {
			dev := &model.Device{Name: fmt.Sprintf("router%d", i+1)}
			insert(dev)
			d.Devices = append(d.Devices, dev)

			tenant := &model.Tenant{Name: fmt.Sprintf("tenant%d", i+1)}
			insert(tenant)
			d.Tenants = append(d.Tenants, tenant)

			asn := &model.ASN{Number: int64(i + 1), OrganizationName: dev.Name}
			insert(asn)
			d.ASNs = append(d.ASNs, asn)

			addr := &model.IPAddress{Address: fmt.Sprintf("10.0.0.%d/32", i+1)}
			insert(addr)
			d.Addresses = append(d.Addresses, addr)

			rp := &model.RoutePolicy{DeviceID: dev.ID, Name: "RM-TEST"}
			insert(rp)
			d.RoutePolicies = append(d.RoutePolicies, rp)

			term := &model.RoutePolicyTerm{RoutePolicyID: rp.ID, Sequence: 10, Decision: model.DecisionPermit}
			insert(term)
			d.Terms = append(d.Terms, term)

			pg := &model.BGPPeerGroup{DeviceID: dev.ID, Name: "PG-TEST", LocalASNID: model.ID(asn.ID)}
			insert(pg)
			d.PeerGroups = append(d.PeerGroups, pg)
		}
		for i := 0; i < 6; i++ {
			n := i / 2
			ds := &model.DeviceBGPSession{
				DeviceID:        d.Devices[n].ID,
				LocalAddressID:  d.Addresses[n].ID,
				PeerGroupID:     model.ID(d.PeerGroups[n].ID),
				RoutePolicyInID: model.ID(d.RoutePolicies[n].ID),
			}
			insert(ds)
			d.DeviceSessions = append(d.DeviceSessions, ds)
		}
		for i, pair := range [][2]int{{0, 2}, {1, 4}, {3, 5}} {
			s := &model.BGPSession{
				PeerAID:         d.DeviceSessions[pair[0]].ID,
				PeerBID:         d.DeviceSessions[pair[1]].ID,
				State:           model.StateProduction,
				MonitoringState: model.MonitoringCritical,
				TenantID:        model.ID(d.Tenants[i].ID),
			}
			insert(s)
			d.Sessions = append(d.Sessions, s)
		}
		return nil
	})
	require.NoError(t, err)
	return d
}

// Count returns the number of rows of kind matching where.
func Count(t testing.TB, st store.Store, kind model.Kind, where store.Filter) int {
	t.Helper()
	var n int
	err := st.Transaction(context.Background(), func(tx store.Tx) error {
		rows, err := tx.Find(context.Background(), kind, where)
		n = len(rows)
		return err
	})
	require.NoError(t, err)
	return n
}

// Exists reports whether the row exists.
func Exists(t testing.TB, st store.Store, ref model.Ref) bool {
	t.Helper()
	var ok bool
	err := st.Transaction(context.Background(), func(tx store.Tx) error {
		var err error
		ok, err = tx.Lock(context.Background(), ref.Kind, ref.ID)
		return err
	})
	require.NoError(t, err)
	return ok
}
