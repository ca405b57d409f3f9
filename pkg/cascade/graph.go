// Package cascade decides which rows a delete request removes and refuses requests that
// would remove rows still in use elsewhere.
package cascade

import (
	"fmt"
	"slices"

	"bgp-cmdb/pkg/model"
)

// Policy is what happens to dependent rows when their source row is deleted.
type Policy int

const (
	// Cascade deletes the dependents.
	Cascade Policy = iota
	// Restrict refuses the delete while dependents outside the request exist.
	Restrict
	// CascadeRoot deletes the dependents only when the source row is the target of the
	// request itself, not when it is reached through another cascade.
	CascadeRoot
)

func (p Policy) String() string {
	switch p {
	case Cascade:
		return "cascade"
	case Restrict:
		return "restrict"
	case CascadeRoot:
		return "cascade-root"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Edge relates rows of a source kind to rows of Dependent.
type Edge struct {
	Dependent model.Kind
	Columns   []string
	Policy    Policy
	// Forward edges are read from the source row's own columns instead of from
	// dependents pointing back at it. Forward dependents are deleted after the source.
	Forward bool
}

// Graph maps a source kind to its outgoing edges, in evaluation order.
type Graph map[model.Kind][]Edge

// DefaultGraph is the deletion policy of the CMDB.
//
// A device takes its sessions, peer groups and route policies with it, in that order so
// that rows referencing a policy or peer group are gone before it is. Route policies,
// peer groups and ASNs are shared and refuse deletion while referenced. Deleting a device
// session takes down the BGP session built on it, but only a BGP session deleted on its
// own takes its two device sessions with it; the sibling of a deleted endpoint survives.
func DefaultGraph() Graph {
	return Graph{
		model.KindDevice: {
			{Dependent: model.KindDeviceBGPSession, Columns: []string{"device_id"}, Policy: Cascade},
			{Dependent: model.KindBGPPeerGroup, Columns: []string{"device_id"}, Policy: Cascade},
			{Dependent: model.KindRoutePolicy, Columns: []string{"device_id"}, Policy: Cascade},
		},
		model.KindTenant: {
			{Dependent: model.KindBGPSession, Columns: []string{"tenant_id"}, Policy: Restrict},
		},
		model.KindIPAddress: {
			{Dependent: model.KindDeviceBGPSession, Columns: []string{"local_address_id"}, Policy: Restrict},
		},
		model.KindASN: {
			{Dependent: model.KindBGPPeerGroup, Columns: []string{"local_asn_id", "remote_asn_id"}, Policy: Restrict},
		},
		model.KindRoutePolicy: {
			{Dependent: model.KindRoutePolicyTerm, Columns: []string{"route_policy_id"}, Policy: Cascade},
			{Dependent: model.KindDeviceBGPSession, Columns: []string{"route_policy_in_id", "route_policy_out_id"}, Policy: Restrict},
			{Dependent: model.KindBGPPeerGroup, Columns: []string{"route_policy_in_id", "route_policy_out_id"}, Policy: Restrict},
		},
		model.KindBGPPeerGroup: {
			{Dependent: model.KindDeviceBGPSession, Columns: []string{"peer_group_id"}, Policy: Restrict},
		},
		model.KindDeviceBGPSession: {
			{Dependent: model.KindBGPSession, Columns: []string{"peer_a_id", "peer_b_id"}, Policy: Cascade},
		},
		model.KindBGPSession: {
			{Dependent: model.KindDeviceBGPSession, Columns: []string{"peer_a_id", "peer_b_id"}, Policy: CascadeRoot, Forward: true},
		},
	}
}

// Validate checks that every foreign key in fks is covered by a backward edge, so no
// delete can leave a dangling reference, and that forward edges name real columns.
func (g Graph) Validate(fks map[model.Kind]map[string]model.Kind) error {
	for source, cols := range fks {
		for col, target := range cols {
			if !g.covers(target, source, col) {
				return fmt.Errorf("no deletion policy for %s.%s -> %s", source, col, target)
			}
		}
	}
	for source, edges := range g {
		for _, e := range edges {
			if len(e.Columns) == 0 {
				return fmt.Errorf("edge %s -> %s has no columns", source, e.Dependent)
			}
			if !e.Forward {
				continue
			}
			for _, c := range e.Columns {
				if fks[source][c] != e.Dependent {
					return fmt.Errorf("forward edge %s.%s does not reference %s", source, c, e.Dependent)
				}
			}
		}
	}
	return nil
}

func (g Graph) covers(target, dependent model.Kind, col string) bool {
	for _, e := range g[target] {
		if !e.Forward && e.Dependent == dependent && slices.Contains(e.Columns, col) {
			return true
		}
	}
	return false
}
