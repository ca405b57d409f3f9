package model

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a BGP session.
type State string

const (
	StatePlanned         State = "planned"
	StateStaging         State = "staging"
	StateProduction      State = "production"
	StateDecommissioning State = "decommissioning"
	StateRetired         State = "retired"
)

// MonitoringState controls how alerts raised for a session are handled.
type MonitoringState string

const (
	MonitoringDisabled MonitoringState = "disabled"
	MonitoringCritical MonitoringState = "critical"
	MonitoringWarning  MonitoringState = "warning"
)

var (
	states           = []string{string(StatePlanned), string(StateStaging), string(StateProduction), string(StateDecommissioning), string(StateRetired)}
	monitoringStates = []string{string(MonitoringDisabled), string(MonitoringCritical), string(MonitoringWarning)}
)

// BGPPeerGroup is a device-scoped template of peering defaults.
type BGPPeerGroup struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	DeviceID         uint      `gorm:"column:device_id;not null;uniqueIndex:idx_bgp_peer_group_device_name" json:"deviceId"`
	Name             string    `gorm:"size:128;not null;uniqueIndex:idx_bgp_peer_group_device_name" json:"name"`
	Description      string    `gorm:"size:255" json:"description,omitempty"`
	LocalASNID       *uint     `gorm:"column:local_asn_id;index" json:"localAsnId,omitempty"`
	RemoteASNID      *uint     `gorm:"column:remote_asn_id;index" json:"remoteAsnId,omitempty"`
	RoutePolicyInID  *uint     `gorm:"column:route_policy_in_id;index" json:"routePolicyInId,omitempty"`
	RoutePolicyOutID *uint     `gorm:"column:route_policy_out_id;index" json:"routePolicyOutId,omitempty"`
	MaximumPrefixes  *int      `gorm:"column:maximum_prefixes" json:"maximumPrefixes,omitempty"`
	EnforceFirstAS   bool      `gorm:"column:enforce_first_as" json:"enforceFirstAs"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (BGPPeerGroup) TableName() string { return "bgp_peer_groups" }

func (g *BGPPeerGroup) Kind() Kind { return KindBGPPeerGroup }
func (g *BGPPeerGroup) Key() uint { return g.ID }
func (g *BGPPeerGroup) SetKey(id uint) { g.ID = id }

func (g *BGPPeerGroup) UniqueKeys() []string {
	return []string{fmt.Sprintf("device_id=%d,name=%s", g.DeviceID, g.Name)}
}

func (g *BGPPeerGroup) Columns() map[string]any {
	return map[string]any{
		"id":                  g.ID,
		"device_id":           g.DeviceID,
		"name":                g.Name,
		"local_asn_id":        idOf(g.LocalASNID),
		"remote_asn_id":       idOf(g.RemoteASNID),
		"route_policy_in_id":  idOf(g.RoutePolicyInID),
		"route_policy_out_id": idOf(g.RoutePolicyOutID),
	}
}

func (g *BGPPeerGroup) Validate() []Problem {
	var out []Problem
	if g.DeviceID == 0 {
		out = append(out, Problem{Index: -1, Field: "deviceId", Message: "is required"})
	}
	if strings.TrimSpace(g.Name) == "" {
		out = append(out, Problem{Index: -1, Field: "name", Message: "is required"})
	}
	if g.MaximumPrefixes != nil && *g.MaximumPrefixes < 0 {
		out = append(out, Problem{Index: -1, Field: "maximumPrefixes", Message: "must not be negative"})
	}
	return out
}

// DeviceBGPSession is one device's side of a BGP session.
type DeviceBGPSession struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	DeviceID         uint      `gorm:"column:device_id;not null;index" json:"deviceId"`
	LocalAddressID   uint      `gorm:"column:local_address_id;not null;index" json:"localAddressId"`
	Description      string    `gorm:"size:255" json:"description,omitempty"`
	PeerGroupID      *uint     `gorm:"column:peer_group_id;index" json:"peerGroupId,omitempty"`
	RoutePolicyInID  *uint     `gorm:"column:route_policy_in_id;index" json:"routePolicyInId,omitempty"`
	RoutePolicyOutID *uint     `gorm:"column:route_policy_out_id;index" json:"routePolicyOutId,omitempty"`
	MaximumPrefixes  *int      `gorm:"column:maximum_prefixes" json:"maximumPrefixes,omitempty"`
	EnforceFirstAS   bool      `gorm:"column:enforce_first_as" json:"enforceFirstAs"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (DeviceBGPSession) TableName() string { return "device_bgp_sessions" }

func (s *DeviceBGPSession) Kind() Kind { return KindDeviceBGPSession }
func (s *DeviceBGPSession) Key() uint { return s.ID }
func (s *DeviceBGPSession) SetKey(id uint) { s.ID = id }

func (s *DeviceBGPSession) Columns() map[string]any {
	return map[string]any{
		"id":                  s.ID,
		"device_id":           s.DeviceID,
		"local_address_id":    s.LocalAddressID,
		"peer_group_id":       idOf(s.PeerGroupID),
		"route_policy_in_id":  idOf(s.RoutePolicyInID),
		"route_policy_out_id": idOf(s.RoutePolicyOutID),
	}
}

func (s *DeviceBGPSession) Validate() []Problem {
	var out []Problem
	if s.DeviceID == 0 {
		out = append(out, Problem{Index: -1, Field: "deviceId", Message: "is required"})
	}
	if s.LocalAddressID == 0 {
		out = append(out, Problem{Index: -1, Field: "localAddressId", Message: "is required"})
	}
	if s.MaximumPrefixes != nil && *s.MaximumPrefixes < 0 {
		out = append(out, Problem{Index: -1, Field: "maximumPrefixes", Message: "must not be negative"})
	}
	return out
}

// BGPSession pairs two device sessions.
type BGPSession struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PeerAID         uint            `gorm:"column:peer_a_id;not null;uniqueIndex" json:"peerAId"`
	PeerBID         uint            `gorm:"column:peer_b_id;not null;uniqueIndex" json:"peerBId"`
	State           State           `gorm:"size:32;not null" json:"state"`
	MonitoringState MonitoringState `gorm:"column:monitoring_state;size:32;not null" json:"monitoringState"`
	TenantID        *uint           `gorm:"column:tenant_id;index" json:"tenantId,omitempty"`
	Password        string          `gorm:"size:255" json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (BGPSession) TableName() string { return "bgp_sessions" }

func (s *BGPSession) Kind() Kind { return KindBGPSession }
func (s *BGPSession) Key() uint { return s.ID }
func (s *BGPSession) SetKey(id uint) { s.ID = id }

// UniqueKeys makes a device session usable by one BGP session only, whatever the slot.
func (s *BGPSession) UniqueKeys() []string {
	return []string{fmt.Sprintf("endpoint=%d", s.PeerAID), fmt.Sprintf("endpoint=%d", s.PeerBID)}
}

func (s *BGPSession) Columns() map[string]any {
	return map[string]any{
		"id":               s.ID,
		"peer_a_id":        s.PeerAID,
		"peer_b_id":        s.PeerBID,
		"state":            string(s.State),
		"monitoring_state": string(s.MonitoringState),
		"tenant_id":        idOf(s.TenantID),
	}
}

func (s *BGPSession) Validate() []Problem {
	var out []Problem
	if s.PeerAID == 0 {
		out = append(out, Problem{Index: -1, Field: "peerAId", Message: "is required"})
	}
	if s.PeerBID == 0 {
		out = append(out, Problem{Index: -1, Field: "peerBId", Message: "is required"})
	}
	if s.PeerAID != 0 && s.PeerAID == s.PeerBID {
		out = append(out, Problem{Index: -1, Field: "peerBId", Message: "must differ from peerAId"})
	}
	if !oneOf(string(s.State), states) {
		out = append(out, Problem{Index: -1, Field: "state", Message: "must be one of " + strings.Join(states, ", ")})
	}
	if !oneOf(string(s.MonitoringState), monitoringStates) {
		out = append(out, Problem{Index: -1, Field: "monitoringState", Message: "must be one of " + strings.Join(monitoringStates, ", ")})
	}
	return out
}
