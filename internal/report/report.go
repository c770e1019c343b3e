// Package report exports a project's KPIs and budgets and the inventory
// ledger as an .xlsx workbook.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/orchidnexus/orchid/internal/budget"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
	"github.com/xuri/excelize/v2"
)

const (
	SheetInventory = "Inventory"
	SheetBudgets   = "Budgets"
	SheetExpenses  = "Expenses"
	SheetKPIs      = "KPIs"
)

var (
	inventoryHeader = []string{"Item", "Location", "Quantity", "Low-Stock Threshold", "Low"}
	budgetHeader    = []string{"Activity", "Total", "Spent", "Remaining", "Used %", "Over Budget"}
	expenseHeader   = []string{"Activity", "Date", "Description", "Amount"}
	kpiHeader       = []string{"Objective", "Activity", "KPI", "Unit", "Target", "Current", "Progress %"}
)

type sheet struct {
	name   string
	header []string
	widths []float64
	rows   [][]any
}

// Write renders p's sheets (when p is non-nil) followed by the inventory
// sheet and writes the workbook to w.
func Write(w io.Writer, p *domain.Project, records []domain.InventoryRecord) error {
	var sheets []sheet
	if p != nil {
		sheets = append(sheets, kpiSheet(*p), budgetSheet(*p), expenseSheet(*p))
	}
	sheets = append(sheets, inventorySheet(records))

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("naming sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	header := make([]any, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return fmt.Errorf("%s header range: %w", s.name, err)
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", s.name, err)
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", s.name, i+2, err)
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", s.name, i+2, err)
		}
	}

	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("%s column %d: %w", s.name, i+1, err)
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return fmt.Errorf("sizing %s column %s: %w", s.name, col, err)
		}
	}
	return nil
}

func inventorySheet(records []domain.InventoryRecord) sheet {
	s := sheet{name: SheetInventory, header: inventoryHeader, widths: []float64{24, 24, 10, 20, 8}}
	for _, r := range records {
		low := "OK"
		if inventory.IsLow(r) {
			low = "LOW"
		}
		s.rows = append(s.rows, []any{r.Item.Name, r.Location.Name, r.Quantity, r.ThresholdLabel(), low})
	}
	return s
}

func budgetSheet(p domain.Project) sheet {
	s := sheet{name: SheetBudgets, header: budgetHeader, widths: []float64{28, 12, 12, 12, 10, 12}}
	for _, b := range budget.ForProject(p) {
		over := "NO"
		if b.Remaining < 0 {
			over = "YES"
		}
		s.rows = append(s.rows, []any{b.ActivityName, b.Total, b.Spent, b.Remaining, round1(b.Ratio * 100), over})
	}
	return s
}

func expenseSheet(p domain.Project) sheet {
	s := sheet{name: SheetExpenses, header: expenseHeader, widths: []float64{28, 18, 36, 12}}
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			for _, e := range budget.ExpensesRecentFirst(a.Budget) {
				date := ""
				if !e.Timestamp.IsZero() {
					date = e.Timestamp.Format("2006-01-02 15:04")
				}
				s.rows = append(s.rows, []any{a.Name, date, e.Description, e.Amount})
			}
		}
	}
	return s
}

func kpiSheet(p domain.Project) sheet {
	s := sheet{name: SheetKPIs, header: kpiHeader, widths: []float64{24, 24, 24, 10, 10, 10, 12}}
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			for _, k := range a.KPIs {
				s.rows = append(s.rows, []any{o.Name, a.Name, k.Name, k.Unit, k.TargetValue, k.CurrentValue, round1(k.ProgressPct())})
			}
		}
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
