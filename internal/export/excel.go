// Package export writes report downloads. CSV covers the quick spreadsheet
// paste, XLSX the bookkeeping archive the cooperative files each month.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bumdespos/terminal/internal/domain"
)

// WriteSalesXLSX writes the sales report as a single-sheet workbook.
func WriteSalesXLSX(w io.Writer, rep domain.SalesReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Tanggal", "No Invoice", "Pelanggan", "Total", "Dibayar", "Sisa", "Status"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range rep.List {
		row := []any{
			s.Date.Local().Format("2006-01-02 15:04"),
			s.InvoiceNo,
			s.CustomerName,
			s.GrandTotal,
			s.AmountPaid,
			s.Due(),
			s.PaymentStatus,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	totalCell := fmt.Sprintf("A%d", len(rep.List)+3)
	if err := f.SetSheetRow(sheet, totalCell, &[]any{"Total", "", "", rep.Total}); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	_, err := f.WriteTo(w)
	return err
}

// WriteStockInXLSX writes the stock-in report as a single-sheet workbook.
func WriteStockInXLSX(w io.Writer, rep domain.StockInReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Tanggal", "Produk", "Qty", "Harga Modal", "Nilai", "Catatan"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, m := range rep.List {
		row := []any{
			m.Date.Local().Format("2006-01-02 15:04"),
			m.ProductName,
			m.Qty,
			m.UnitCost,
			m.Value,
			m.Note,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	totalCell := fmt.Sprintf("A%d", len(rep.List)+3)
	if err := f.SetSheetRow(sheet, totalCell, &[]any{"Total", "", rep.TotalQty, "", rep.TotalValue}); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	_, err := f.WriteTo(w)
	return err
}
