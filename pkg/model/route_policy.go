package model

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Decision is the action a term applies to a matching route.
type Decision string

const (
	DecisionPermit Decision = "permit"
	DecisionDeny   Decision = "deny"
)

var (
	decisions       = []string{string(DecisionPermit), string(DecisionDeny)}
	sourceProtocols = []string{"bgp", "connected", "static", "ospf", "isis"}
	routeTypes      = []string{"internal", "external"}
	origins         = []string{"igp", "egp", "incomplete"}

	wellKnownCommunities = []string{"no-export", "no-advertise", "no-export-subconfed", "blackhole", "graceful-shutdown"}
)

// maxPrependRepeat bounds as-path prepending.
const maxPrependRepeat = 16

// RoutePolicy is a named, device-scoped, ordered list of terms.
type RoutePolicy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    uint      `gorm:"column:device_id;not null;uniqueIndex:idx_route_policy_device_name" json:"deviceId"`
	Name        string    `gorm:"size:128;not null;uniqueIndex:idx_route_policy_device_name" json:"name"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (RoutePolicy) TableName() string { return "route_policies" }

func (p *RoutePolicy) Kind() Kind { return KindRoutePolicy }
func (p *RoutePolicy) Key() uint { return p.ID }
func (p *RoutePolicy) SetKey(id uint) { p.ID = id }

func (p *RoutePolicy) UniqueKeys() []string {
	return []string{fmt.Sprintf("device_id=%d,name=%s", p.DeviceID, p.Name)}
}

func (p *RoutePolicy) Columns() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"device_id":   p.DeviceID,
		"name":        p.Name,
		"description": p.Description,
	}
}

func (p *RoutePolicy) Validate() []Problem {
	var out []Problem
	if p.DeviceID == 0 {
		out = append(out, Problem{Index: -1, Field: "deviceId", Message: "is required"})
	}
	if strings.TrimSpace(p.Name) == "" {
		out = append(out, Problem{Index: -1, Field: "name", Message: "is required"})
	}
	return out
}

// RoutePolicyTerm is one match/set rule of a route policy. Terms are evaluated by ascending
// sequence; equal sequences keep creation order.
type RoutePolicyTerm struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	RoutePolicyID uint     `gorm:"column:route_policy_id;not null;index" json:"routePolicyId"`
	Description   string   `gorm:"size:255" json:"description,omitempty"`
	Sequence      int      `gorm:"not null" json:"sequence"`
	Decision      Decision `gorm:"size:16;not null" json:"decision"`

	FromBGPCommunity     string `gorm:"column:from_bgp_community;size:255" json:"fromBgpCommunity,omitempty"`
	FromBGPCommunityList string `gorm:"column:from_bgp_community_list;size:128" json:"fromBgpCommunityList,omitempty"`
	FromPrefixList       string `gorm:"column:from_prefix_list;size:128" json:"fromPrefixList,omitempty"`
	FromSourceProtocol   string `gorm:"column:from_source_protocol;size:32" json:"fromSourceProtocol,omitempty"`
	FromRouteType        string `gorm:"column:from_route_type;size:32" json:"fromRouteType,omitempty"`
	FromLocalPref        *int   `gorm:"column:from_local_pref" json:"fromLocalPref,omitempty"`

	SetLocalPref           *int   `gorm:"column:set_local_pref" json:"setLocalPref,omitempty"`
	SetCommunity           string `gorm:"column:set_community;size:255" json:"setCommunity,omitempty"`
	SetOrigin              string `gorm:"column:set_origin;size:16" json:"setOrigin,omitempty"`
	SetMetric              *int   `gorm:"column:set_metric" json:"setMetric,omitempty"`
	SetLargeCommunity      string `gorm:"column:set_large_community;size:255" json:"setLargeCommunity,omitempty"`
	SetASPathPrependASN    int64  `gorm:"column:set_as_path_prepend_asn" json:"setAsPathPrependAsn,omitempty"`
	SetASPathPrependRepeat *int   `gorm:"column:set_as_path_prepend_repeat" json:"setAsPathPrependRepeat,omitempty"`
	SetNextHop             string `gorm:"column:set_next_hop;size:64" json:"setNextHop,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (RoutePolicyTerm) TableName() string { return "route_policy_terms" }

func (t *RoutePolicyTerm) Kind() Kind { return KindRoutePolicyTerm }
func (t *RoutePolicyTerm) Key() uint { return t.ID }
func (t *RoutePolicyTerm) SetKey(id uint) { t.ID = id }

func (t *RoutePolicyTerm) Columns() map[string]any {
	return map[string]any{
		"id":              t.ID,
		"route_policy_id": t.RoutePolicyID,
		"sequence":        t.Sequence,
		"decision":        string(t.Decision),
	}
}

// Validate checks the term's own fields. Problems carry Index -1; batch callers renumber them.
func (t *RoutePolicyTerm) Validate() []Problem {
	var out []Problem
	add := func(field, msg string) {
		out = append(out, Problem{Index: -1, Field: field, Message: msg})
	}
	if t.Sequence < 0 {
		add("sequence", "must not be negative")
	}
	if !oneOf(string(t.Decision), decisions) {
		add("decision", "must be one of "+strings.Join(decisions, ", "))
	}
	if t.FromSourceProtocol != "" && !oneOf(t.FromSourceProtocol, sourceProtocols) {
		add("fromSourceProtocol", "must be one of "+strings.Join(sourceProtocols, ", "))
	}
	if t.FromRouteType != "" && !oneOf(t.FromRouteType, routeTypes) {
		add("fromRouteType", "must be one of "+strings.Join(routeTypes, ", "))
	}
	if t.SetOrigin != "" && !oneOf(t.SetOrigin, origins) {
		add("setOrigin", "must be one of "+strings.Join(origins, ", "))
	}
	for _, f := range []struct {
		name string
		v    *int
	}{{"fromLocalPref", t.FromLocalPref}, {"setLocalPref", t.SetLocalPref}, {"setMetric", t.SetMetric}} {
		if f.v != nil && *f.v < 0 {
			add(f.name, "must not be negative")
		}
	}
	if t.FromBGPCommunity != "" && !validCommunities(t.FromBGPCommunity, 2) {
		add("fromBgpCommunity", "invalid community")
	}
	if t.SetCommunity != "" && !validCommunities(t.SetCommunity, 2) {
		add("setCommunity", "invalid community")
	}
	if t.SetLargeCommunity != "" && !validCommunities(t.SetLargeCommunity, 3) {
		add("setLargeCommunity", "invalid large community")
	}
	if t.SetASPathPrependASN != 0 && (t.SetASPathPrependASN < 0 || t.SetASPathPrependASN > MaxASN) {
		add("setAsPathPrependAsn", "must be between 1 and 4294967295")
	}
	if r := t.SetASPathPrependRepeat; r != nil {
		switch {
		case t.SetASPathPrependASN == 0:
			add("setAsPathPrependRepeat", "requires setAsPathPrependAsn")
		case *r < 1 || *r > maxPrependRepeat:
			add("setAsPathPrependRepeat", fmt.Sprintf("must be between 1 and %d", maxPrependRepeat))
		}
	}
	if t.SetNextHop != "" && t.SetNextHop != "self" {
		if _, err := netip.ParseAddr(t.SetNextHop); err != nil {
			add("setNextHop", "must be an IP address or \"self\"")
		}
	}
	return out
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// validCommunities accepts space or comma separated communities made of parts fields
// (2 for standard, 3 for large). Standard communities also accept well-known names.
func validCommunities(s string, parts int) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if parts == 2 && oneOf(f, wellKnownCommunities) {
			continue
		}
		elems := strings.Split(f, ":")
		if len(elems) != parts {
			return false
		}
		bits := 32
		if parts == 2 {
			bits = 16
		}
		for _, e := range elems {
			if _, err := strconv.ParseUint(e, 10, bits); err != nil {
				return false
			}
		}
	}
	return true
}
