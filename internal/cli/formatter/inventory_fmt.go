package formatter

import (
	"strconv"

	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
)

// FormatInventory renders the ledger; rows at or below their threshold are
// flagged.
func FormatInventory(records []domain.InventoryRecord) string {
	if len(records) == 0 {
		return Dim("Inventory is empty.") + "\n"
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		qty := strconv.Itoa(r.Quantity)
		flag := ""
		if inventory.IsLow(r) {
			qty = StyleRed.Render(qty)
			flag = StyleRedBold.Render("LOW")
		}
		rows = append(rows, []string{r.Item.Name, r.Location.Name, qty, r.ThresholdLabel(), flag})
	}
	return RenderTable([]string{"ITEM", "LOCATION", "QTY", "THRESHOLD", ""}, rows)
}

func FormatAlerts(records []domain.InventoryRecord) string {
	if len(records) == 0 {
		return StyleGreen.Render("No low-stock alerts.") + "\n"
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			StyleRed.Render("▲"),
			r.Item.Name,
			r.Location.Name,
			strconv.Itoa(r.Quantity) + " / " + r.ThresholdLabel(),
		})
	}
	return RenderBox("Low stock", RenderTable([]string{"", "ITEM", "LOCATION", "QTY / THRESHOLD"}, rows))
}

func FormatItems(items []domain.Item) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{strconv.Itoa(it.ID), it.Name})
	}
	return RenderTable([]string{"ID", "ITEM"}, rows)
}

func FormatLocations(locs []domain.Location) string {
	rows := make([][]string, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, []string{strconv.Itoa(l.ID), l.Name})
	}
	return RenderTable([]string{"ID", "LOCATION"}, rows)
}
