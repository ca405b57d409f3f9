package model

import (
	"net/netip"
	"strings"
	"time"
)

// Device is the host application's device. Everything BGP-related is scoped to one.
type Device struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Device) TableName() string { return "devices" }

func (d *Device) Kind() Kind { return KindDevice }
func (d *Device) Key() uint { return d.ID }
func (d *Device) SetKey(id uint) { d.ID = id }
func (d *Device) UniqueKeys() []string { return []string{"name=" + d.Name} }

func (d *Device) Columns() map[string]any {
	return map[string]any{"id": d.ID, "name": d.Name}
}

func (d *Device) Validate() []Problem {
	if strings.TrimSpace(d.Name) == "" {
		return []Problem{{Index: -1, Field: "name", Message: "is required"}}
	}
	return nil
}

// Tenant is the host application's tenant, optionally attached to a BGP session.
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) Kind() Kind { return KindTenant }
func (t *Tenant) Key() uint { return t.ID }
func (t *Tenant) SetKey(id uint) { t.ID = id }
func (t *Tenant) UniqueKeys() []string { return []string{"name=" + t.Name} }

func (t *Tenant) Columns() map[string]any {
	return map[string]any{"id": t.ID, "name": t.Name}
}

func (t *Tenant) Validate() []Problem {
	if strings.TrimSpace(t.Name) == "" {
		return []Problem{{Index: -1, Field: "name", Message: "is required"}}
	}
	return nil
}

// IPAddress is the host application's address object, used as a session's local address.
type IPAddress struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Address   string    `gorm:"size:64;not null" json:"address"` // CIDR form, e.g. 10.0.0.1/32
	CreatedAt time.Time `json:"createdAt"`
}

func (IPAddress) TableName() string { return "ip_addresses" }

func (a *IPAddress) Kind() Kind { return KindIPAddress }
func (a *IPAddress) Key() uint { return a.ID }
func (a *IPAddress) SetKey(id uint) { a.ID = id }

func (a *IPAddress) Columns() map[string]any {
	return map[string]any{"id": a.ID, "address": a.Address}
}

func (a *IPAddress) Validate() []Problem {
	if _, err := netip.ParsePrefix(a.Address); err != nil {
		return []Problem{{Index: -1, Field: "address", Message: "must be an address with prefix length"}}
	}
	return nil
}
