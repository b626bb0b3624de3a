package httpapi

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"fuelos/backend/internal/domain"
)

const shiftSheet = "Shifts"

var shiftExportHeader = []string{
	"Report ID",
	"Pump",
	"Date",
	"Shift",
	"Total Sales",
	"Cash",
	"Card",
	"UPI",
	"Credit Out",
	"Collected",
	"Variance",
	"Status",
	"Operator",
	"Submitted By",
	"Submitted At",
}

// shiftReportsWorkbook renders submitted shift reports as one sheet with a
// totals row at the bottom.
func shiftReportsWorkbook(reports []domain.ShiftReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(shiftSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}

	header := make([]any, len(shiftExportHeader))
	for i, h := range shiftExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(shiftSheet, "A1", &header); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(shiftExportHeader))
	if err := f.SetCellStyle(shiftSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	var sales, collected, variance decimal.Decimal
	for i, r := range reports {
		row := []any{
			r.ID,
			r.PumpID,
			r.Date,
			string(r.Shift),
			r.TotalSales.InexactFloat64(),
			r.Cash.InexactFloat64(),
			r.Card.InexactFloat64(),
			r.UPI.InexactFloat64(),
			r.CreditOut.InexactFloat64(),
			r.Collected.InexactFloat64(),
			r.Variance.InexactFloat64(),
			r.Status,
			r.Operator,
			r.SubmittedBy,
			r.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(shiftSheet, cell, &row); err != nil {
			return nil, err
		}
		sales = sales.Add(r.TotalSales)
		collected = collected.Add(r.Collected)
		variance = variance.Add(r.Variance)
	}

	totalRow := len(reports) + 2
	totals := []any{"TOTAL", "", "", "", sales.InexactFloat64(), "", "", "", "", collected.InexactFloat64(), variance.InexactFloat64()}
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetSheetRow(shiftSheet, cell, &totals); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(shiftSheet, "E2", fmt.Sprintf("K%d", totalRow), moneyStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(shiftSheet, "A", lastCol, 14); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
