package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"bgp-cmdb/pkg/cmdbtest"
	"bgp-cmdb/pkg/model"
	"bgp-cmdb/pkg/store"
)

func deleteRef(t *testing.T, st store.Store, ref model.Ref) (Result, error) {
	t.Helper()
	e := NewEngine(DefaultGraph())
	var res Result
	err := st.Transaction(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = e.Delete(context.Background(), tx, ref)
		return err
	})
	return res, err
}

func TestDefaultGraphCoversEveryForeignKey(t *testing.T) {
	require.NoError(t, DefaultGraph().Validate(model.ForeignKeys))
}

func TestGraphValidateReportsUncoveredKey(t *testing.T) {
	g := DefaultGraph()
	delete(g, model.KindTenant)
	err := g.Validate(model.ForeignKeys)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tenant_id")
}

func TestDeleteDeviceRemovesOwnedRows(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	res, err := deleteRef(t, st, model.RefOf(d.Devices[0]))
	require.NoError(t, err)
	require.Equal(t, map[model.Kind]int{
		model.KindBGPSession:       2,
		model.KindDeviceBGPSession: 2,
		model.KindBGPPeerGroup:     1,
		model.KindRoutePolicyTerm:  1,
		model.KindRoutePolicy:      1,
		model.KindDevice:           1,
	}, res.Counts())
	require.Equal(t, model.RefOf(d.Devices[0]), res.Removed[len(res.Removed)-1])

	require.Equal(t, 1, cmdbtest.Count(t, st, model.KindBGPSession, nil))
	require.Equal(t, 4, cmdbtest.Count(t, st, model.KindDeviceBGPSession, nil))
	require.Equal(t, 2, cmdbtest.Count(t, st, model.KindRoutePolicy, nil))
	require.Equal(t, 2, cmdbtest.Count(t, st, model.KindBGPPeerGroup, nil))
	// the remote endpoints of the removed sessions stay
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.DeviceSessions[2])))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.DeviceSessions[4])))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.Sessions[2])))
}

func TestDeleteSessionTakesBothEndpoints(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	res, err := deleteRef(t, st, model.RefOf(d.Sessions[0]))
	require.NoError(t, err)
	require.Equal(t, []model.Ref{
		model.RefOf(d.Sessions[0]),
		model.RefOf(d.DeviceSessions[0]),
		model.RefOf(d.DeviceSessions[2]),
	}, res.Removed)
	require.Equal(t, 4, cmdbtest.Count(t, st, model.KindDeviceBGPSession, nil))
	require.Equal(t, 2, cmdbtest.Count(t, st, model.KindBGPSession, nil))
}

func TestDeleteEndpointKeepsSibling(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	res, err := deleteRef(t, st, model.RefOf(d.DeviceSessions[0]))
	require.NoError(t, err)
	require.Equal(t, []model.Ref{
		model.RefOf(d.Sessions[0]),
		model.RefOf(d.DeviceSessions[0]),
	}, res.Removed)
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.DeviceSessions[2])))
}

func TestDeleteEndpointsLeavesPolicies(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	_, err := deleteRef(t, st, model.RefOf(d.DeviceSessions[3]))
	require.NoError(t, err)
	_, err = deleteRef(t, st, model.RefOf(d.DeviceSessions[5]))
	require.NoError(t, err)

	require.Equal(t, 2, cmdbtest.Count(t, st, model.KindBGPSession, nil))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.RoutePolicies[1])))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.RoutePolicies[2])))
}

func TestDeleteReferencedPolicyIsRefused(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	_, err := deleteRef(t, st, model.RefOf(d.RoutePolicies[0]))
	var inUse *model.InUseError
	require.True(t, errors.As(err, &inUse))
	require.Equal(t, model.KindRoutePolicy, inUse.Kind)
	require.Equal(t, d.RoutePolicies[0].ID, inUse.ID)
	require.Equal(t, model.KindDeviceBGPSession, inUse.Referrer)
	require.Equal(t, 2, inUse.Count)

	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.RoutePolicies[0])))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.Terms[0])))
}

func TestDeleteReferencedHostObjectsIsRefused(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	for _, ref := range []model.Ref{
		model.RefOf(d.ASNs[0]),
		model.RefOf(d.Tenants[0]),
		model.RefOf(d.Addresses[0]),
		model.RefOf(d.PeerGroups[0]),
	} {
		_, err := deleteRef(t, st, ref)
		var inUse *model.InUseError
		require.True(t, errors.As(err, &inUse), ref.String())
		require.True(t, cmdbtest.Exists(t, st, ref))
	}
}

func TestDeletePolicyReferencedByPeerGroupIsRefused(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)
	ctx := context.Background()

	rp := &model.RoutePolicy{DeviceID: d.Devices[0].ID, Name: "RM-OUT"}
	pg := *d.PeerGroups[0]
	err := st.Transaction(ctx, func(tx store.Tx) error {
		if err := tx.Insert(ctx, rp); err != nil {
			return err
		}
		if err := tx.Insert(ctx, &model.RoutePolicyTerm{RoutePolicyID: rp.ID, Sequence: 10, Decision: model.DecisionDeny}); err != nil {
			return err
		}
		pg.RoutePolicyOutID = model.ID(rp.ID)
		return tx.Update(ctx, &pg)
	})
	require.NoError(t, err)

	_, err = deleteRef(t, st, model.RefOf(rp))
	var inUse *model.InUseError
	require.True(t, errors.As(err, &inUse))
	require.Equal(t, model.KindRoutePolicy, inUse.Kind)
	require.Equal(t, rp.ID, inUse.ID)
	require.Equal(t, model.KindBGPPeerGroup, inUse.Referrer)
	require.Equal(t, 1, inUse.Count)
	require.Equal(t, 4, cmdbtest.Count(t, st, model.KindRoutePolicyTerm, nil))

	// once the peer group lets go the policy and its term are removed
	pg.RoutePolicyOutID = nil
	require.NoError(t, st.Transaction(ctx, func(tx store.Tx) error { return tx.Update(ctx, &pg) }))
	res, err := deleteRef(t, st, model.RefOf(rp))
	require.NoError(t, err)
	require.Equal(t, 1, res.Count(model.KindRoutePolicy))
	require.Equal(t, 1, res.Count(model.KindRoutePolicyTerm))
}

func TestDeleteASNReferencedAsRemoteIsRefused(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)
	ctx := context.Background()

	asn := &model.ASN{Number: 65100, OrganizationName: "upstream"}
	err := st.Transaction(ctx, func(tx store.Tx) error {
		if err := tx.Insert(ctx, asn); err != nil {
			return err
		}
		return tx.Insert(ctx, &model.BGPPeerGroup{
			DeviceID:    d.Devices[0].ID,
			Name:        "PG-UPSTREAM",
			RemoteASNID: model.ID(asn.ID),
		})
	})
	require.NoError(t, err)

	_, err = deleteRef(t, st, model.RefOf(asn))
	var inUse *model.InUseError
	require.True(t, errors.As(err, &inUse))
	require.Equal(t, model.KindASN, inUse.Kind)
	require.Equal(t, model.KindBGPPeerGroup, inUse.Referrer)
	require.Equal(t, 1, inUse.Count)
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(asn)))
}

func TestDeleteDeviceBlockedByForeignReferrer(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	// a session on router2 borrows router1's policy
	err := st.Transaction(context.Background(), func(tx store.Tx) error {
		return tx.Insert(context.Background(), &model.DeviceBGPSession{
			DeviceID:         d.Devices[1].ID,
			LocalAddressID:   d.Addresses[1].ID,
			RoutePolicyOutID: model.ID(d.RoutePolicies[0].ID),
		})
	})
	require.NoError(t, err)

	_, err = deleteRef(t, st, model.RefOf(d.Devices[0]))
	var inUse *model.InUseError
	require.True(t, errors.As(err, &inUse))
	require.Equal(t, 1, inUse.Count)

	// nothing was removed
	require.Equal(t, 3, cmdbtest.Count(t, st, model.KindBGPSession, nil))
	require.Equal(t, 7, cmdbtest.Count(t, st, model.KindDeviceBGPSession, nil))
	require.True(t, cmdbtest.Exists(t, st, model.RefOf(d.Devices[0])))
}

func TestDeleteIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	d := cmdbtest.Load(t, st)

	ref := model.RefOf(d.Sessions[1])
	res, err := deleteRef(t, st, ref)
	require.NoError(t, err)
	require.Len(t, res.Removed, 3)

	res, err = deleteRef(t, st, ref)
	require.NoError(t, err)
	require.Empty(t, res.Removed)

	res, err = deleteRef(t, st, model.Ref{Kind: model.KindDevice, ID: 999})
	require.NoError(t, err)
	require.Empty(t, res.Removed)
}

func TestDeleteUnknownKind(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := deleteRef(t, st, model.Ref{Kind: "widget", ID: 1})
	require.Error(t, err)
}
