// Package receipt renders a finalized sale into printable forms: a standalone
// HTML page sized for thermal paper and raw ESC/POS bytes for a printer bridge.
package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"bumdespos/terminal/internal/domain"
)

// Document carries every rendering of one receipt. HTML is for the browser
// print dialog, EscposBase64 feeds a local printer bridge, PreviewText shows
// what the paper will say.
type Document struct {
	InvoiceNo    string `json:"invoiceNo"`
	HTML         string `json:"html"`
	EscposBase64 string `json:"escposBase64"`
	PreviewText  string `json:"previewText"`
	FileName     string `json:"fileName"`
}

var pageTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Struk {{.InvoiceNo}}</title>
<style>
  body { font-family: monospace; font-size: 12px; margin: 0; padding: 8px; width: {{.WidthMM}}mm; }
  .center { text-align: center; }
  .row { display: flex; justify-content: space-between; }
  hr { border: none; border-top: 1px dashed #000; }
</style>
</head>
<body onload="window.print()">
  <div class="center">
    <strong>{{.StoreName}}</strong><br>
    {{if .StoreAddress}}{{.StoreAddress}}<br>{{end}}
    {{if .StorePhone}}{{.StorePhone}}<br>{{end}}
  </div>
  <hr>
  <div class="row"><span>No</span><span>{{.InvoiceNo}}</span></div>
  <div class="row"><span>Tanggal</span><span>{{.Date}}</span></div>
  {{if .CustomerName}}<div class="row"><span>Pelanggan</span><span>{{.CustomerName}}</span></div>{{end}}
  <hr>
  {{range .Lines}}
  <div>{{.Name}}</div>
  <div class="row"><span>{{.Qty}} x {{.UnitPrice}}</span><span>{{.LineTotal}}</span></div>
  {{end}}
  <hr>
  <div class="row"><strong>Total</strong><strong>{{.GrandTotal}}</strong></div>
  <div class="row"><span>Bayar ({{.Method}})</span><span>{{.AmountPaid}}</span></div>
  {{if .Due}}<div class="row"><span>Sisa</span><span>{{.Due}}</span></div>{{end}}
  <div class="row"><span>Status</span><span>{{.Status}}</span></div>
  <hr>
  <div class="center">Terima kasih</div>
</body>
</html>
`))

type pageLine struct {
	Name      string
	Qty       int
	UnitPrice string
	LineTotal string
}

type pageData struct {
	WidthMM      int
	StoreName    string
	StoreAddress string
	StorePhone   string
	InvoiceNo    string
	Date         string
	CustomerName string
	Lines        []pageLine
	GrandTotal   string
	AmountPaid   string
	Due          string
	Method       string
	Status       string
}

// Render produces the full document for a sale using the terminal's settings.
// The sale's server-reported figures win over anything computed locally.
func Render(sale domain.Sale, cfg domain.Settings) (Document, error) {
	data := pageData{
		WidthMM:      cfg.ReceiptWidthMM,
		StoreName:    cfg.StoreName,
		StoreAddress: cfg.StoreAddress,
		StorePhone:   cfg.StorePhone,
		InvoiceNo:    sale.InvoiceNo,
		Date:         sale.Date.Local().Format("2006-01-02 15:04"),
		CustomerName: sale.CustomerName,
		GrandTotal:   FormatIDR(sale.GrandTotal),
		AmountPaid:   FormatIDR(sale.AmountPaid),
		Method:       sale.Method,
		Status:       statusLabel(sale.PaymentStatus),
	}
	if due := sale.Due(); due > 0 {
		data.Due = FormatIDR(due)
	}
	for _, it := range sale.Items {
		data.Lines = append(data.Lines, pageLine{
			Name:      it.ProductName,
			Qty:       it.Qty,
			UnitPrice: FormatIDR(it.UnitPrice),
			LineTotal: FormatIDR(it.UnitPrice * int64(it.Qty)),
		})
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return Document{}, fmt.Errorf("render receipt: %w", err)
	}

	lines := paperLines(sale, cfg)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return Document{
		InvoiceNo:    sale.InvoiceNo,
		HTML:         buf.String(),
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("struk-%s.bin", sale.InvoiceNo),
	}, nil
}

func paperLines(sale domain.Sale, cfg domain.Settings) []string {
	lines := []string{
		cfg.StoreName,
	}
	if cfg.StoreAddress != "" {
		lines = append(lines, cfg.StoreAddress)
	}
	if cfg.StorePhone != "" {
		lines = append(lines, cfg.StorePhone)
	}
	lines = append(lines,
		"========================",
		"No   : "+sale.InvoiceNo,
		"Tgl  : "+sale.Date.Local().Format("2006-01-02 15:04"),
	)
	if sale.CustomerName != "" {
		lines = append(lines, "Plgn : "+sale.CustomerName)
	}
	lines = append(lines, "------------------------")
	for _, it := range sale.Items {
		lines = append(lines, it.ProductName)
		lines = append(lines, fmt.Sprintf("  %d x %s = %s", it.Qty, FormatIDR(it.UnitPrice), FormatIDR(it.UnitPrice*int64(it.Qty))))
	}
	lines = append(lines,
		"------------------------",
		"Total  : "+FormatIDR(sale.GrandTotal),
		"Bayar  : "+FormatIDR(sale.AmountPaid),
	)
	if due := sale.Due(); due > 0 {
		lines = append(lines, "Sisa   : "+FormatIDR(due))
	}
	lines = append(lines,
		"Status : "+statusLabel(sale.PaymentStatus),
		"========================",
		"Terima kasih",
		"",
	)
	return lines
}

func statusLabel(status string) string {
	switch status {
	case domain.PaymentStatusPaid:
		return "LUNAS"
	case domain.PaymentStatusPartial:
		return "SEBAGIAN"
	case domain.PaymentStatusOpen:
		return "PIUTANG"
	default:
		return strings.ToUpper(status)
	}
}

// FormatIDR renders an amount in rupiah with dot grouping, e.g. "Rp12.500".
func FormatIDR(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("Rp")
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
		if len(digits) > pre {
			b.WriteByte('.')
		}
	}
	for i := pre; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	return b.String()
}
