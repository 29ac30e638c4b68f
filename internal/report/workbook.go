// =============================================================================
// SPED Toolkit - Aggregation Report Workbook
// =============================================================================
//
// This module renders the aggregation table to an XLSX workbook with a single
// sheet: one header row with the table columns, then one row per aggregation
// key in key order. Classification columns are written as text, amounts and
// rates as numbers.
//
// An empty table is not rendered: callers get ErrEmptyTable and treat it as
// "no report to generate".
//
// =============================================================================

package report

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/sped-toolkit/internal/aggregator"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the report sheet.
const SheetName = "Consolidacao CST_CFOP"

// ErrEmptyTable is returned when there is nothing to render.
var ErrEmptyTable = errors.New("no report to generate: aggregation table is empty")

// defaultSheet is the sheet excelize creates in a new workbook.
const defaultSheet = "Sheet1"

// WriteTable writes table to a new workbook at path.
//
// PARAMETERS:
//   - path: The output .xlsx path. An existing file is overwritten.
//   - table: The aggregation table to render.
//
// RETURNS:
//   - ErrEmptyTable when table is nil or has no rows. No file is created.
//   - An error if the workbook cannot be built or saved.
func WriteTable(path string, table *aggregator.Table) error {
	if table == nil || table.Empty() {
		return ErrEmptyTable
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}

	header := make([]interface{}, len(aggregator.Columns))
	for i, col := range aggregator.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range table.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := cells(row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// cells converts a row to worksheet values in aggregator.Columns order.
func cells(r *aggregator.Row) []interface{} {
	values := r.Values()
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}

	// Amounts and rates are numeric columns.
	numeric := map[int]decimal.Decimal{
		2: r.Item, 3: r.ICMS, 4: r.ICMSST, 5: r.IPI,
		7: r.BasePIS, 8: aggregator.ParseAmount(r.RatePIS), 9: r.PIS,
		11: r.BaseCOFINS, 12: aggregator.ParseAmount(r.RateCOFINS), 13: r.COFINS,
	}
	for i, d := range numeric {
		out[i] = d.InexactFloat64()
	}
	return out
}

// ReadTable returns every row of the report sheet at path, header
// included, as raw cell values.
func ReadTable(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}
