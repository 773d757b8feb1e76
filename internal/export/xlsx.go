package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"superstore/internal/engine"
)

// XLSXContentType is the media type of an Excel workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names of the report workbook.
const (
	PivotSheet       = "Profit Pivot"
	PerformanceSheet = "Category Performance"
	MonthlySheet     = "Monthly Sales"
	DiscountSheet    = "Discount Profit"
)

// WriteReport writes the dashboard's tabular sections as a workbook.
// Pivot cells without records stay blank.
func WriteReport(w io.Writer, d *engine.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PivotSheet); err != nil {
		return err
	}
	for _, name := range []string{PerformanceSheet, MonthlySheet, DiscountSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := writePivot(f, d.ProfitPivot); err != nil {
		return fmt.Errorf("pivot sheet: %w", err)
	}

	perf := [][]any{{"Category", "Sales", "Profit"}}
	for _, p := range d.CategoryPerformance {
		perf = append(perf, []any{p.Category, p.Sales, p.Profit})
	}
	if err := writeRows(f, PerformanceSheet, perf); err != nil {
		return fmt.Errorf("performance sheet: %w", err)
	}

	monthly := [][]any{{"Month", "Sales", "Orders"}}
	for _, p := range d.MonthlySales {
		monthly = append(monthly, []any{p.Label(), p.Value, p.Count})
	}
	if err := writeRows(f, MonthlySheet, monthly); err != nil {
		return fmt.Errorf("monthly sheet: %w", err)
	}

	discount := [][]any{{"Discount", "Mean Profit", "Orders"}}
	for _, g := range d.DiscountProfit.Groups {
		discount = append(discount, []any{g.Key, g.Value, g.Count})
	}
	if err := writeRows(f, DiscountSheet, discount); err != nil {
		return fmt.Errorf("discount sheet: %w", err)
	}

	return f.Write(w)
}

func writePivot(f *excelize.File, p *engine.PivotTable) error {
	if p == nil {
		return nil
	}
	if err := setCell(f, PivotSheet, 1, 1, "Region"); err != nil {
		return err
	}
	for j, col := range p.Columns {
		if err := setCell(f, PivotSheet, j+2, 1, col); err != nil {
			return err
		}
	}
	for i, row := range p.Rows {
		if err := setCell(f, PivotSheet, 1, i+2, row); err != nil {
			return err
		}
		for j, col := range p.Columns {
			v, ok := p.Get(row, col)
			if !ok {
				continue
			}
			if err := setCell(f, PivotSheet, j+2, i+2, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			if err := setCell(f, sheet, j+1, i+1, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}
