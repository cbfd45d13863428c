package export

import (
	"fmt"
	"strings"

	"bumdespos/terminal/internal/domain"
)

func SalesCSV(rep domain.SalesReport) string {
	lines := []string{
		"date,invoice_no,customer,grand_total,amount_paid,due,status",
	}
	for _, s := range rep.List {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%d,%d,%d,%s",
			s.Date.Local().Format("2006-01-02 15:04"),
			csvField(s.InvoiceNo),
			csvField(s.CustomerName),
			s.GrandTotal,
			s.AmountPaid,
			s.Due(),
			s.PaymentStatus,
		))
	}
	lines = append(lines, fmt.Sprintf("total,,,%d,,,", rep.Total))
	return strings.Join(lines, "\n") + "\n"
}

func StockInCSV(rep domain.StockInReport) string {
	lines := []string{
		"date,product,qty,unit_cost,value,note",
	}
	for _, m := range rep.List {
		lines = append(lines, fmt.Sprintf("%s,%s,%d,%d,%d,%s",
			m.Date.Local().Format("2006-01-02 15:04"),
			csvField(m.ProductName),
			m.Qty,
			m.UnitCost,
			m.Value,
			csvField(m.Note),
		))
	}
	lines = append(lines, fmt.Sprintf("total,,%d,,%d,", rep.TotalQty, rep.TotalValue))
	return strings.Join(lines, "\n") + "\n"
}

// csvField quotes values that would break the row format.
func csvField(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
