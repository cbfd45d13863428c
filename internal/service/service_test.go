package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bumdespos/terminal/internal/cache"
	"bumdespos/terminal/internal/cart"
	"bumdespos/terminal/internal/domain"
	"bumdespos/terminal/internal/gateway"
	"bumdespos/terminal/internal/session"
	"bumdespos/terminal/internal/settings"
)

// fakeGateway implements gateway.API in memory. Individual calls can be
// overridden per test through the function fields.
type fakeGateway struct {
	products    []domain.Product
	customers   []domain.Customer
	openSales   []domain.Sale
	salesReport domain.SalesReport

	createSale  func(ctx context.Context, req domain.SaleRequest) (domain.Sale, error)
	saleCalls   int
	payments    []domain.PaymentRequest
	listCalls   int
	productErrs error
}

func (f *fakeGateway) Login(_ context.Context, req domain.LoginRequest) (gateway.LoginResult, error) {
	if req.Username == "kasir" && req.Password == "rahasia" {
		return gateway.LoginResult{Token: "tok", Role: domain.RoleCashier, Name: "Kasir Satu", Username: "kasir"}, nil
	}
	return gateway.LoginResult{}, fmt.Errorf("%w: bad credentials", gateway.ErrUnauthorized)
}

func (f *fakeGateway) ListProducts(_ context.Context, _ string) ([]domain.Product, error) {
	f.listCalls++
	if f.productErrs != nil {
		return nil, f.productErrs
	}
	return f.products, nil
}

func (f *fakeGateway) CreateProduct(_ context.Context, _ domain.ProductUpsertRequest) (domain.Product, error) {
	return domain.Product{}, nil
}

func (f *fakeGateway) UpdateProduct(_ context.Context, _ string, _ domain.ProductUpsertRequest) (domain.Product, error) {
	return domain.Product{}, nil
}

func (f *fakeGateway) DeleteProduct(_ context.Context, _ string) error { return nil }

func (f *fakeGateway) AddStock(_ context.Context, _ string, _ domain.AddStockRequest) error {
	return nil
}

func (f *fakeGateway) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	return f.customers, nil
}

func (f *fakeGateway) CreateCustomer(_ context.Context, _ domain.CustomerUpsertRequest) (domain.Customer, error) {
	return domain.Customer{}, nil
}

func (f *fakeGateway) UpdateCustomer(_ context.Context, _ string, _ domain.CustomerUpsertRequest) (domain.Customer, error) {
	return domain.Customer{}, nil
}

func (f *fakeGateway) DeleteCustomer(_ context.Context, _ string) error { return nil }

func (f *fakeGateway) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	f.saleCalls++
	if f.createSale != nil {
		return f.createSale(ctx, req)
	}
	return domain.Sale{ID: "s1", InvoiceNo: "INV-001", Date: time.Now().UTC(), AmountPaid: req.AmountPaid, PaymentStatus: domain.PaymentStatusPaid}, nil
}

func (f *fakeGateway) ListSales(_ context.Context, _ string) ([]domain.Sale, error) {
	return f.openSales, nil
}

func (f *fakeGateway) CreatePayment(_ context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	f.payments = append(f.payments, req)
	return domain.Payment{ID: "pay1", SaleID: req.SaleID, Amount: req.Amount, Method: req.Method, Date: time.Now().UTC()}, nil
}

func (f *fakeGateway) SalesReport(_ context.Context, _, _ string) (domain.SalesReport, error) {
	return f.salesReport, nil
}

func (f *fakeGateway) StockInReport(_ context.Context, _, _ string) (domain.StockInReport, error) {
	return domain.StockInReport{}, nil
}

func (f *fakeGateway) ListUsers(_ context.Context) ([]domain.User, error) { return nil, nil }

func (f *fakeGateway) CreateUser(_ context.Context, _ domain.UserCreateRequest) (domain.User, error) {
	return domain.User{}, nil
}

func (f *fakeGateway) DeleteUser(_ context.Context, _ string) error { return nil }

func newTestService(t *testing.T, gw *fakeGateway) *Service {
	t.Helper()
	dir := t.TempDir()
	svc := New(
		gw,
		cart.NewRegistry(),
		session.NewStore(dir),
		settings.NewStore(dir),
		cache.NoopSnapshotCache{},
		time.Second,
		time.UTC,
	)
	svc.retryDelay = func() time.Duration { return 0 }
	return svc
}

func fillCart(t *testing.T, svc *Service, gw *fakeGateway) *cart.Cart {
	t.Helper()
	gw.products = []domain.Product{
		{ID: "p1", Name: "Beras 5kg", Unit: "sak", SellPrice: 70000, StockQty: 10},
		{ID: "p2", Name: "Gula 1kg", Unit: "pcs", SellPrice: 15000, StockQty: 4},
	}
	c := svc.CreateCart()
	if _, _, err := svc.AddCartLine(context.Background(), c.ID, "p1"); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, _, err := svc.SetCartQuantity(c.ID, "p1", 2); err != nil {
		t.Fatalf("set qty failed: %v", err)
	}
	return c
}

func TestFinalizeEmptyCartNeverCallsGateway(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw)
	c := svc.CreateCart()

	_, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if gw.saleCalls != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.saleCalls)
	}

	// The cart must be usable afterwards.
	if _, _, err := svc.SetCartQuantity(c.ID, "p1", 1); err != nil {
		t.Fatalf("cart locked after failed finalize: %v", err)
	}
}

func TestFinalizeDeclinedConfirmationLeavesCartUntouched(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	_, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: false})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if gw.saleCalls != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.saleCalls)
	}

	got, err := svc.GetCart(c.ID)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if got.Empty() {
		t.Fatalf("expected cart intact after declined confirmation")
	}
}

func TestFinalizePaidSaleClearsCart(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)
	if _, err := svc.UpdateCartMeta(c.ID, CartMeta{AmountPaid: int64Ptr(140000)}); err != nil {
		t.Fatalf("set meta failed: %v", err)
	}

	res, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if res.Sale.InvoiceNo != "INV-001" {
		t.Fatalf("expected server invoice number, got %q", res.Sale.InvoiceNo)
	}
	if len(res.Sale.Items) != 1 || res.Sale.Items[0].ProductName != "Beras 5kg" {
		t.Fatalf("expected local line names merged into sale, got %+v", res.Sale.Items)
	}
	if res.Receipt.EscposBase64 == "" || res.Receipt.HTML == "" {
		t.Fatalf("expected rendered receipt")
	}

	got, _ := svc.GetCart(c.ID)
	if !got.Empty() {
		t.Fatalf("expected cart cleared after successful checkout")
	}
}

func TestFinalizePayloadOmitsPrices(t *testing.T) {
	gw := &fakeGateway{}
	var captured domain.SaleRequest
	gw.createSale = func(_ context.Context, req domain.SaleRequest) (domain.Sale, error) {
		captured = req
		return domain.Sale{ID: "s1", InvoiceNo: "INV-001", Date: time.Now().UTC()}, nil
	}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	if _, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(captured.Items))
	}
	if captured.Items[0].ProductID != "p1" || captured.Items[0].Qty != 2 {
		t.Fatalf("unexpected item payload: %+v", captured.Items[0])
	}
}

func TestFinalizeRetriesOnceOnConflict(t *testing.T) {
	gw := &fakeGateway{}
	calls := 0
	gw.createSale = func(_ context.Context, req domain.SaleRequest) (domain.Sale, error) {
		calls++
		if calls == 1 {
			return domain.Sale{}, fmt.Errorf("%w: nomor invoice bentrok", gateway.ErrConflict)
		}
		return domain.Sale{ID: "s1", InvoiceNo: "INV-002", Date: time.Now().UTC(), PaymentStatus: domain.PaymentStatusPaid}, nil
	}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	res, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if res.Sale.InvoiceNo != "INV-002" {
		t.Fatalf("expected retried invoice, got %q", res.Sale.InvoiceNo)
	}

	got, _ := svc.GetCart(c.ID)
	if !got.Empty() {
		t.Fatalf("expected cart cleared after successful retry")
	}
}

func TestFinalizeSecondConflictPropagates(t *testing.T) {
	gw := &fakeGateway{}
	gw.createSale = func(_ context.Context, _ domain.SaleRequest) (domain.Sale, error) {
		return domain.Sale{}, fmt.Errorf("%w: nomor invoice bentrok", gateway.ErrConflict)
	}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	_, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true})
	if !errors.Is(err, gateway.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if gw.saleCalls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", gw.saleCalls)
	}

	got, _ := svc.GetCart(c.ID)
	if got.Empty() {
		t.Fatalf("expected cart intact after failed checkout")
	}
}

func TestFinalizeNeverRetriesStockFailure(t *testing.T) {
	gw := &fakeGateway{}
	gw.createSale = func(_ context.Context, _ domain.SaleRequest) (domain.Sale, error) {
		return domain.Sale{}, fmt.Errorf("%w: stok tidak cukup", gateway.ErrInsufficientStock)
	}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	_, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true})
	if !errors.Is(err, gateway.ErrInsufficientStock) {
		t.Fatalf("expected stock error, got %v", err)
	}
	if gw.saleCalls != 1 {
		t.Fatalf("expected single attempt, got %d", gw.saleCalls)
	}
}

func TestFinalizeRejectsConcurrentSubmission(t *testing.T) {
	gw := &fakeGateway{}
	release := make(chan struct{})
	started := make(chan struct{})
	gw.createSale = func(_ context.Context, _ domain.SaleRequest) (domain.Sale, error) {
		close(started)
		<-release
		return domain.Sale{ID: "s1", InvoiceNo: "INV-001", Date: time.Now().UTC()}, nil
	}
	svc := newTestService(t, gw)
	c := fillCart(t, svc, gw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true})
		done <- err
	}()
	<-started

	if _, err := svc.Finalize(context.Background(), c.ID, CheckoutInput{ConfirmReceivable: true}); !errors.Is(err, cart.ErrFinalizeInFlight) {
		t.Fatalf("expected ErrFinalizeInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first finalize failed: %v", err)
	}
}

func TestRecordPaymentValidatesAgainstDue(t *testing.T) {
	gw := &fakeGateway{
		openSales: []domain.Sale{
			{ID: "s1", GrandTotal: 50000, AmountPaid: 20000, PaymentStatus: domain.PaymentStatusPartial},
		},
	}
	svc := newTestService(t, gw)

	if _, err := svc.RecordPayment(context.Background(), domain.PaymentRequest{SaleID: "s1", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), domain.PaymentRequest{SaleID: "s1", Amount: 40000}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount over due, got %v", err)
	}

	pay, err := svc.RecordPayment(context.Background(), domain.PaymentRequest{SaleID: "s1", Amount: 30000})
	if err != nil {
		t.Fatalf("payment of exact due failed: %v", err)
	}
	if pay.Method != domain.PaymentMethodCash {
		t.Fatalf("expected cash default, got %q", pay.Method)
	}
}

func TestDashboardAggregates(t *testing.T) {
	now := time.Now().UTC()
	gw := &fakeGateway{
		salesReport: domain.SalesReport{List: []domain.Sale{
			{Date: now, GrandTotal: 12000},
			{Date: now.AddDate(0, 0, -2), GrandTotal: 8000},
		}},
		products: []domain.Product{
			{ID: "p1", StockQty: 2},
			{ID: "p2", StockQty: 99},
		},
	}
	svc := newTestService(t, gw)

	dash, err := svc.Dashboard(context.Background(), 7)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dash.TodayTotal != 12000 || dash.TodayCount != 1 {
		t.Fatalf("unexpected today figures: %+v", dash)
	}
	if len(dash.Chart) != 7 {
		t.Fatalf("expected 7 chart buckets, got %d", len(dash.Chart))
	}
	if len(dash.LowStock) != 1 || dash.LowStock[0].ID != "p1" {
		t.Fatalf("unexpected low stock: %+v", dash.LowStock)
	}
}

func TestSessionLifecycle(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, gw)

	if svc.Session().Active() {
		t.Fatalf("expected no session before login")
	}

	state, err := svc.Login(context.Background(), domain.LoginRequest{Username: "kasir", Password: "rahasia"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if state.Role != domain.RoleCashier {
		t.Fatalf("unexpected role %q", state.Role)
	}
	if !svc.Session().Active() {
		t.Fatalf("expected active session after login")
	}

	svc.Logout()
	if s := svc.Session(); s.Active() || s.Token != "" || s.Role != "" {
		t.Fatalf("expected fully cleared session, got %+v", s)
	}
}

func int64Ptr(v int64) *int64 { return &v }
