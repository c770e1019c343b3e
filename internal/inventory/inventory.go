package inventory

import (
	"errors"
	"fmt"

	"github.com/orchidnexus/orchid/internal/domain"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidThreshold = errors.New("low stock threshold must not be negative")
	ErrMissingItem      = errors.New("item is required")
	ErrMissingLocation  = errors.New("location is required")
)

// IsLow reports whether r should raise a low-stock alert. A threshold of 0
// disables alerting for the record.
func IsLow(r domain.InventoryRecord) bool {
	return r.LowStockThreshold > 0 && r.Quantity <= r.LowStockThreshold
}

// ListAlerts returns the low records in their original order.
func ListAlerts(records []domain.InventoryRecord) []domain.InventoryRecord {
	var out []domain.InventoryRecord
	for _, r := range records {
		if IsLow(r) {
			out = append(out, r)
		}
	}
	return out
}

// Movement is a distribution or stock addition for one (item, location).
// Threshold is only sent when non-nil.
type Movement struct {
	ItemID     int  `json:"item_id"`
	LocationID int  `json:"location_id"`
	Quantity   int  `json:"quantity"`
	Threshold  *int `json:"low_stock_threshold,omitempty"`
}

// ValidateDistribution rejects a distribution before it reaches the backend.
// Stock sufficiency is left to the backend.
func ValidateDistribution(m Movement) error {
	if err := validateRefs(m); err != nil {
		return err
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("distribute %d: %w", m.Quantity, ErrInvalidQuantity)
	}
	return nil
}

func ValidateStock(m Movement) error {
	if err := validateRefs(m); err != nil {
		return err
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("add stock %d: %w", m.Quantity, ErrInvalidQuantity)
	}
	if m.Threshold != nil && *m.Threshold < 0 {
		return fmt.Errorf("threshold %d: %w", *m.Threshold, ErrInvalidThreshold)
	}
	return nil
}

func validateRefs(m Movement) error {
	if m.ItemID <= 0 {
		return ErrMissingItem
	}
	if m.LocationID <= 0 {
		return ErrMissingLocation
	}
	return nil
}

// Key identifies the stock of one item at one location.
type Key struct {
	ItemID     int
	LocationID int
}

// Levels indexes records by (item, location). Later records win on duplicates.
func Levels(records []domain.InventoryRecord) map[Key]int {
	out := make(map[Key]int, len(records))
	for _, r := range records {
		out[Key{ItemID: r.ItemID, LocationID: r.LocationID}] = r.Quantity
	}
	return out
}

// ByLocation groups records by location name, preserving record order within
// each group.
func ByLocation(records []domain.InventoryRecord) map[string][]domain.InventoryRecord {
	out := make(map[string][]domain.InventoryRecord)
	for _, r := range records {
		out[r.Location.Name] = append(out[r.Location.Name], r)
	}
	return out
}
