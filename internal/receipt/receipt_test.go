package receipt

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"bumdespos/terminal/internal/domain"
)

func sampleSale() domain.Sale {
	cust := "c1"
	return domain.Sale{
		ID:            "s1",
		InvoiceNo:     "INV-2026-0042",
		Date:          time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC),
		CustomerID:    &cust,
		CustomerName:  "Bu Sari",
		GrandTotal:    35000,
		AmountPaid:    20000,
		Method:        domain.PaymentMethodCash,
		PaymentStatus: domain.PaymentStatusPartial,
		Items: []domain.SaleItem{
			{ProductID: "p1", ProductName: "Beras 5kg", Unit: "sak", Qty: 1, UnitPrice: 30000},
			{ProductID: "p2", ProductName: "Gula 1kg", Unit: "pcs", Qty: 1, UnitPrice: 5000},
		},
	}
}

func sampleSettings() domain.Settings {
	return domain.Settings{
		ReceiptWidthMM: 80,
		StoreName:      "BUMDes Mart Sejahtera",
		StoreAddress:   "Jl. Desa No. 1",
		StorePhone:     "0812-0000-0000",
	}
}

func TestRenderHTMLContainsSaleFields(t *testing.T) {
	doc, err := Render(sampleSale(), sampleSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"INV-2026-0042",
		"BUMDes Mart Sejahtera",
		"Beras 5kg",
		"Rp35.000",
		"Rp20.000",
		"Rp15.000", // remaining due
		"80mm",
	} {
		if !strings.Contains(doc.HTML, want) {
			t.Fatalf("html missing %q", want)
		}
	}
	if doc.FileName != "struk-INV-2026-0042.bin" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
}

func TestRenderEscposFraming(t *testing.T) {
	doc, err := Render(sampleSale(), sampleSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(doc.EscposBase64)
	if err != nil {
		t.Fatalf("escpos not valid base64: %v", err)
	}
	if len(raw) < 6 || raw[0] != 0x1b || raw[1] != 0x40 {
		t.Fatalf("expected ESC @ init prefix, got % x", raw[:2])
	}
	tail := raw[len(raw)-4:]
	if tail[0] != 0x1d || tail[1] != 0x56 || tail[2] != 0x41 || tail[3] != 0x10 {
		t.Fatalf("expected cut suffix, got % x", tail)
	}

	if !strings.Contains(doc.PreviewText, "INV-2026-0042") {
		t.Fatalf("preview missing invoice number")
	}
	if !strings.Contains(doc.PreviewText, "SEBAGIAN") {
		t.Fatalf("preview missing partial status label")
	}
}

func TestRenderPaidSaleHidesDue(t *testing.T) {
	sale := sampleSale()
	sale.AmountPaid = 35000
	sale.PaymentStatus = domain.PaymentStatusPaid

	doc, err := Render(sale, sampleSettings())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(doc.PreviewText, "Sisa") {
		t.Fatalf("paid sale should not print a remaining line")
	}
	if !strings.Contains(doc.PreviewText, "LUNAS") {
		t.Fatalf("paid sale should print LUNAS")
	}
}

func TestFormatIDR(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "Rp0"},
		{500, "Rp500"},
		{1500, "Rp1.500"},
		{35000, "Rp35.000"},
		{1250000, "Rp1.250.000"},
		{-7500, "-Rp7.500"},
	}
	for _, tc := range cases {
		if got := FormatIDR(tc.in); got != tc.want {
			t.Fatalf("FormatIDR(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
