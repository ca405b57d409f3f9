package model

import (
	"fmt"
	"reflect"
)

// Kind names a persisted entity type.
type Kind string

const (
	KindDevice           Kind = "device"
	KindTenant           Kind = "tenant"
	KindIPAddress        Kind = "ip_address"
	KindASN              Kind = "asn"
	KindRoutePolicy      Kind = "route_policy"
	KindRoutePolicyTerm  Kind = "route_policy_term"
	KindBGPPeerGroup     Kind = "bgp_peer_group"
	KindDeviceBGPSession Kind = "device_bgp_session"
	KindBGPSession       Kind = "bgp_session"
)

// Kinds lists every kind in dependency order: a kind only references kinds listed before it.
var Kinds = []Kind{
	KindDevice,
	KindTenant,
	KindIPAddress,
	KindASN,
	KindRoutePolicy,
	KindRoutePolicyTerm,
	KindBGPPeerGroup,
	KindDeviceBGPSession,
	KindBGPSession,
}

// Ref identifies one row.
type Ref struct {
	Kind Kind `json:"kind"`
	ID   uint `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Record is implemented by every persisted entity.
type Record interface {
	Kind() Kind
	Key() uint
	SetKey(id uint)
	// Columns returns column name to value. Foreign keys are reported as uint, 0 meaning null.
	Columns() map[string]any
}

// Uniquer is implemented by records carrying natural keys that must be unique within their kind.
type Uniquer interface {
	UniqueKeys() []string
}

// Validator is implemented by records with field-level rules.
type Validator interface {
	Validate() []Problem
}

// RefOf returns the reference of a record.
func RefOf(r Record) Ref {
	return Ref{Kind: r.Kind(), ID: r.Key()}
}

// New returns an empty record of the given kind, or nil for an unknown kind.
func New(kind Kind) Record {
	switch kind {
	case KindDevice:
		return &Device{}
	case KindTenant:
		return &Tenant{}
	case KindIPAddress:
		return &IPAddress{}
	case KindASN:
		return &ASN{}
	case KindRoutePolicy:
		return &RoutePolicy{}
	case KindRoutePolicyTerm:
		return &RoutePolicyTerm{}
	case KindBGPPeerGroup:
		return &BGPPeerGroup{}
	case KindDeviceBGPSession:
		return &DeviceBGPSession{}
	case KindBGPSession:
		return &BGPSession{}
	}
	return nil
}

// ForeignKeys maps, per kind, each reference column to the kind it points at.
var ForeignKeys = map[Kind]map[string]Kind{
	KindRoutePolicy: {
		"device_id": KindDevice,
	},
	KindRoutePolicyTerm: {
		"route_policy_id": KindRoutePolicy,
	},
	KindBGPPeerGroup: {
		"device_id":           KindDevice,
		"local_asn_id":        KindASN,
		"remote_asn_id":       KindASN,
		"route_policy_in_id":  KindRoutePolicy,
		"route_policy_out_id": KindRoutePolicy,
	},
	KindDeviceBGPSession: {
		"device_id":           KindDevice,
		"local_address_id":    KindIPAddress,
		"peer_group_id":       KindBGPPeerGroup,
		"route_policy_in_id":  KindRoutePolicy,
		"route_policy_out_id": KindRoutePolicy,
	},
	KindBGPSession: {
		"peer_a_id": KindDeviceBGPSession,
		"peer_b_id": KindDeviceBGPSession,
		"tenant_id": KindTenant,
	},
}

// References returns the non-null foreign keys of a record.
func References(r Record) map[string]Ref {
	out := map[string]Ref{}
	cols := r.Columns()
	for col, target := range ForeignKeys[r.Kind()] {
		if id, _ := cols[col].(uint); id != 0 {
			out[col] = Ref{Kind: target, ID: id}
		}
	}
	return out
}

// Clone returns a copy of r that shares no pointers with it.
func Clone(r Record) Record {
	src := reflect.ValueOf(r).Elem()
	dst := reflect.New(src.Type())
	dst.Elem().Set(src)
	for i := 0; i < src.NumField(); i++ {
		f := dst.Elem().Field(i)
		if f.Kind() == reflect.Ptr && !f.IsNil() && f.CanSet() {
			cp := reflect.New(f.Type().Elem())
			cp.Elem().Set(f.Elem())
			f.Set(cp)
		}
	}
	return dst.Interface().(Record)
}

func idOf(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

// ID returns a pointer usable for optional references; 0 yields nil.
func ID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
