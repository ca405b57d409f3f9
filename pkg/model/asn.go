package model

import (
	"strconv"
	"time"
)

// MaxASN is the largest 4-byte autonomous system number.
const MaxASN = 4294967295

// ASN is an autonomous system number and the organization it belongs to.
type ASN struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Number           int64     `gorm:"not null;uniqueIndex" json:"number"`
	OrganizationName string    `gorm:"size:255" json:"organizationName"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (ASN) TableName() string { return "asns" }

func (a *ASN) Kind() Kind { return KindASN }
func (a *ASN) Key() uint { return a.ID }
func (a *ASN) SetKey(id uint) { a.ID = id }
func (a *ASN) UniqueKeys() []string { return []string{"number=" + strconv.FormatInt(a.Number, 10)} }

func (a *ASN) Columns() map[string]any {
	return map[string]any{
		"id":                a.ID,
		"number":            a.Number,
		"organization_name": a.OrganizationName,
	}
}

func (a *ASN) Validate() []Problem {
	if a.Number <= 0 || a.Number > MaxASN {
		return []Problem{{Index: -1, Field: "number", Message: "must be between 1 and 4294967295"}}
	}
	return nil
}

func (a *ASN) String() string {
	return "AS" + strconv.FormatInt(a.Number, 10)
}
