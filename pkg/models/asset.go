package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of an asset
type Status string

const (
	StatusInStock        Status = "Em Estoque"
	StatusInUse          Status = "Em Uso"
	StatusMaintenance    Status = "Manutenção"
	StatusDecommissioned Status = "Descomissionado"
)

// DefaultStatus is assigned when a create request carries no status
const DefaultStatus = StatusInStock

// Statuses returns every known status in display order
func Statuses() []Status {
	return []Status{StatusInStock, StatusInUse, StatusMaintenance, StatusDecommissioned}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Asset represents one physical IT item in the inventory
type Asset struct {
	ID           int64      `json:"id"`
	SerialNumber string     `json:"serialNumber"`
	Name         string     `json:"name"`
	PurchaseDate *time.Time `json:"purchaseDate"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CreateAssetRequest represents the request body for creating a new asset
type CreateAssetRequest struct {
	SerialNumber string     `json:"serialNumber" validate:"required"`
	Name         string     `json:"name" validate:"required"`
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
	Status       Status     `json:"status,omitempty" validate:"omitempty,asset_status"`
}

// Normalize trims text fields and applies the default status
func (r *CreateAssetRequest) Normalize() {
	r.SerialNumber = strings.TrimSpace(r.SerialNumber)
	r.Name = strings.TrimSpace(r.Name)
	r.Status = Status(strings.TrimSpace(string(r.Status)))
	if r.Status == "" {
		r.Status = DefaultStatus
	}
	if r.PurchaseDate != nil {
		t := NormalizeTime(*r.PurchaseDate)
		r.PurchaseDate = &t
	}
}

// UpdateAssetRequest represents the request body for updating an asset.
// Nil fields are left untouched.
type UpdateAssetRequest struct {
	SerialNumber *string      `json:"serialNumber,omitempty" validate:"omitnil,min=1"`
	Name         *string      `json:"name,omitempty" validate:"omitnil,min=1"`
	PurchaseDate NullableTime `json:"purchaseDate"`
	Status       *Status      `json:"status,omitempty" validate:"omitnil,asset_status"`
}

// MarshalJSON writes only the supplied fields, so an unset purchaseDate is
// omitted rather than sent as null.
func (r UpdateAssetRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, 4)
	if r.SerialNumber != nil {
		m["serialNumber"] = *r.SerialNumber
	}
	if r.Name != nil {
		m["name"] = *r.Name
	}
	if r.PurchaseDate.Set {
		m["purchaseDate"] = r.PurchaseDate
	}
	if r.Status != nil {
		m["status"] = *r.Status
	}
	return json.Marshal(m)
}

// Normalize trims every supplied text field
func (r *UpdateAssetRequest) Normalize() {
	if r.SerialNumber != nil {
		v := strings.TrimSpace(*r.SerialNumber)
		r.SerialNumber = &v
	}
	if r.Name != nil {
		v := strings.TrimSpace(*r.Name)
		r.Name = &v
	}
	if r.Status != nil {
		v := Status(strings.TrimSpace(string(*r.Status)))
		r.Status = &v
	}
	if r.PurchaseDate.Time != nil {
		t := NormalizeTime(*r.PurchaseDate.Time)
		r.PurchaseDate.Time = &t
	}
}

// Apply overwrites the supplied fields of a
func (r UpdateAssetRequest) Apply(a *Asset) {
	if r.SerialNumber != nil {
		a.SerialNumber = *r.SerialNumber
	}
	if r.Name != nil {
		a.Name = *r.Name
	}
	if r.PurchaseDate.Set {
		a.PurchaseDate = r.PurchaseDate.Time
	}
	if r.Status != nil {
		a.Status = *r.Status
	}
}

// NullableTime distinguishes an absent JSON key from an explicit null
type NullableTime struct {
	Set  bool
	Time *time.Time
}

// NewNullableTime returns a set value holding t, or an explicit null when t is nil
func NewNullableTime(t *time.Time) NullableTime {
	return NullableTime{Set: true, Time: t}
}

// UnmarshalJSON is only invoked when the key is present
func (n *NullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Time = &t
	return nil
}

// MarshalJSON implements json.Marshaler
func (n NullableTime) MarshalJSON() ([]byte, error) {
	if n.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.Time)
}

// NormalizeTime converts t to UTC at microsecond precision, the finest
// resolution every supported database keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
