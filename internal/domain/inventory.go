package domain

import "strconv"

type Item struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type Location struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// InventoryRecord is the stock of one item at one location. A
// LowStockThreshold of 0 means alerting is disabled for the record.
type InventoryRecord struct {
	ID                int      `json:"id"`
	Quantity          int      `json:"quantity"`
	LowStockThreshold int      `json:"low_stock_threshold"`
	ItemID            int      `json:"item_id"`
	LocationID        int      `json:"location_id"`
	Item              Item     `json:"item"`
	Location          Location `json:"location"`
}

// ThresholdLabel renders the threshold for display, "N/A" when disabled.
func (r InventoryRecord) ThresholdLabel() string {
	if r.LowStockThreshold > 0 {
		return strconv.Itoa(r.LowStockThreshold)
	}
	return "N/A"
}
