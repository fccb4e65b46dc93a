package ui

import (
	"fmt"
	"strings"
	"time"

	"it-asset-manager-api/pkg/models"
)

// Form holds the editable fields of an asset as plain strings, the way a
// user types them. PurchaseDate is a calendar date (YYYY-MM-DD) or empty.
type Form struct {
	SerialNumber string
	Name         string
	PurchaseDate string
	Status       string
}

// NewForm returns an empty form for a new asset
func NewForm() Form {
	return Form{Status: string(models.DefaultStatus)}
}

// FormFromAsset pre-fills the form from an existing asset
func FormFromAsset(a models.Asset) Form {
	f := Form{
		SerialNumber: a.SerialNumber,
		Name:         a.Name,
		Status:       string(a.Status),
	}
	if a.PurchaseDate != nil {
		f.PurchaseDate = a.PurchaseDate.UTC().Format(dateLayout)
	}
	return f
}

// CreateRequest converts the form into a create payload
func (f Form) CreateRequest() (models.CreateAssetRequest, error) {
	pd, err := parseFormDate(f.PurchaseDate)
	if err != nil {
		return models.CreateAssetRequest{}, err
	}
	return models.CreateAssetRequest{
		SerialNumber: strings.TrimSpace(f.SerialNumber),
		Name:         strings.TrimSpace(f.Name),
		PurchaseDate: pd,
		Status:       models.Status(strings.TrimSpace(f.Status)),
	}, nil
}

// UpdateRequest converts the form into a full update payload. An empty
// purchase date is sent as an explicit null.
func (f Form) UpdateRequest() (models.UpdateAssetRequest, error) {
	pd, err := parseFormDate(f.PurchaseDate)
	if err != nil {
		return models.UpdateAssetRequest{}, err
	}
	serial := strings.TrimSpace(f.SerialNumber)
	name := strings.TrimSpace(f.Name)
	status := models.Status(strings.TrimSpace(f.Status))
	return models.UpdateAssetRequest{
		SerialNumber: &serial,
		Name:         &name,
		PurchaseDate: models.NewNullableTime(pd),
		Status:       &status,
	}, nil
}

// parseFormDate turns YYYY-MM-DD into midnight UTC; empty means no date
func parseFormDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("purchase date %q must be YYYY-MM-DD", s)
	}
	return &t, nil
}
