// Package service orchestrates the terminal's use cases against the remote
// gateway: checkout with its conflict retry, receivable payments, dashboard
// aggregation and the catalog proxies the cashier UI needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"bumdespos/terminal/internal/cache"
	"bumdespos/terminal/internal/cart"
	"bumdespos/terminal/internal/domain"
	"bumdespos/terminal/internal/gateway"
	"bumdespos/terminal/internal/receipt"
	"bumdespos/terminal/internal/report"
	"bumdespos/terminal/internal/session"
	"bumdespos/terminal/internal/settings"
	"bumdespos/terminal/internal/xid"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrConfirmationRequired = errors.New("receivable sale requires confirmation")
	ErrInvalidAmount        = errors.New("invalid payment amount")
	ErrProductNotFound      = errors.New("product not found")
)

const (
	lowStockThreshold = 5
	nearExpiryWindow  = 30 * 24 * time.Hour
)

type Service struct {
	gw          gateway.API
	carts       *cart.Registry
	sessions    *session.Store
	settings    *settings.Store
	snapshots   cache.SnapshotCache
	snapshotTTL time.Duration
	loc         *time.Location

	// catalogGen is bumped on every catalog mutation so stale cache entries
	// stop matching without an explicit invalidate call.
	catalogGen atomic.Int64

	// retryDelay is the wait before the single conflict retry. Injectable so
	// tests do not sleep.
	retryDelay func() time.Duration
}

func New(gw gateway.API, carts *cart.Registry, sessions *session.Store, settingsStore *settings.Store, snapshots cache.SnapshotCache, snapshotTTL time.Duration, loc *time.Location) *Service {
	if snapshots == nil {
		snapshots = cache.NoopSnapshotCache{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		gw:          gw,
		carts:       carts,
		sessions:    sessions,
		settings:    settingsStore,
		snapshots:   snapshots,
		snapshotTTL: snapshotTTL,
		loc:         loc,
		retryDelay: func() time.Duration {
			return time.Duration(150+rand.Intn(60)) * time.Millisecond
		},
	}
}

// --- session ---

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (session.State, error) {
	res, err := s.gw.Login(ctx, req)
	if err != nil {
		return session.State{}, err
	}
	state := session.State{
		Token:    res.Token,
		Role:     res.Role,
		Name:     res.Name,
		Username: res.Username,
	}
	if err := s.sessions.Set(state); err != nil {
		log.Printf("[service] WARN: failed to persist session: %v", err)
	}
	return state, nil
}

func (s *Service) Logout() {
	s.sessions.Clear()
}

// Session returns the current login. An expired token is cleared immediately
// so every caller sees the same logged-out state.
func (s *Service) Session() session.State {
	state := s.sessions.Current()
	if !state.Active() {
		return session.State{}
	}
	if s.sessions.Expired(time.Now()) {
		s.sessions.Clear()
		return session.State{}
	}
	return state
}

// --- catalog ---

func (s *Service) Products(ctx context.Context, query string) ([]domain.Product, error) {
	key := s.cacheKey(query)
	if cached, ok, err := s.snapshots.GetProducts(ctx, key); err == nil && ok {
		return cached, nil
	}
	products, err := s.gw.ListProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.SetProducts(ctx, key, products, s.snapshotTTL); err != nil {
		log.Printf("[service] WARN: product snapshot cache write failed: %v", err)
	}
	return products, nil
}

func (s *Service) Customers(ctx context.Context) ([]domain.Customer, error) {
	key := s.cacheKey("")
	if cached, ok, err := s.snapshots.GetCustomers(ctx, key); err == nil && ok {
		return cached, nil
	}
	customers, err := s.gw.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.SetCustomers(ctx, key, customers, s.snapshotTTL); err != nil {
		log.Printf("[service] WARN: customer snapshot cache write failed: %v", err)
	}
	return customers, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error) {
	p, err := s.gw.CreateProduct(ctx, req)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return p, err
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpsertRequest) (domain.Product, error) {
	p, err := s.gw.UpdateProduct(ctx, id, req)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return p, err
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	err := s.gw.DeleteProduct(ctx, id)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return err
}

func (s *Service) AddStock(ctx context.Context, id string, req domain.AddStockRequest) error {
	err := s.gw.AddStock(ctx, id, req)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return err
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	c, err := s.gw.CreateCustomer(ctx, req)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return c, err
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	c, err := s.gw.UpdateCustomer(ctx, id, req)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return c, err
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	err := s.gw.DeleteCustomer(ctx, id)
	if err == nil {
		s.catalogGen.Add(1)
	}
	return err
}

func (s *Service) cacheKey(query string) string {
	return strconv.FormatInt(s.catalogGen.Load(), 10) + ":" + query
}

// --- cart ---

func (s *Service) CreateCart() *cart.Cart {
	return s.carts.Create(xid.New("cart"))
}

func (s *Service) GetCart(id string) (*cart.Cart, error) {
	return s.carts.Get(id)
}

func (s *Service) DiscardCart(id string) {
	s.carts.Discard(id)
}

// AddCartLine fetches a fresh product snapshot and adds it to the cart, so the
// quantity ceiling reflects current stock rather than the view's stale copy.
func (s *Service) AddCartLine(ctx context.Context, cartID, productID string) (*cart.Cart, cart.Notice, error) {
	products, err := s.Products(ctx, "")
	if err != nil {
		return nil, "", err
	}
	var found *domain.Product
	for i := range products {
		if products[i].ID == productID {
			found = &products[i]
			break
		}
	}
	if found == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return s.carts.Mutate(cartID, func(c *cart.Cart) cart.Notice {
		return c.AddLine(*found)
	})
}

func (s *Service) SetCartQuantity(cartID, productID string, qty int) (*cart.Cart, cart.Notice, error) {
	return s.carts.Mutate(cartID, func(c *cart.Cart) cart.Notice {
		return c.SetQuantity(productID, qty)
	})
}

func (s *Service) RemoveCartLine(cartID, productID string) (*cart.Cart, error) {
	c, _, err := s.carts.Mutate(cartID, func(c *cart.Cart) cart.Notice {
		c.RemoveLine(productID)
		return ""
	})
	return c, err
}

// CartMeta is a partial update of the cart's checkout fields. Nil fields are
// left untouched.
type CartMeta struct {
	CustomerID *string `json:"customerId"`
	Note       *string `json:"note"`
	AmountPaid *int64  `json:"amountPaid"`
	Method     *string `json:"method"`
}

func (s *Service) UpdateCartMeta(cartID string, meta CartMeta) (*cart.Cart, error) {
	c, _, err := s.carts.Mutate(cartID, func(c *cart.Cart) cart.Notice {
		if meta.CustomerID != nil {
			c.CustomerID = *meta.CustomerID
		}
		if meta.Note != nil {
			c.Note = *meta.Note
		}
		if meta.AmountPaid != nil {
			c.AmountPaid = *meta.AmountPaid
		}
		if meta.Method != nil && *meta.Method != "" {
			c.Method = *meta.Method
		}
		return ""
	})
	return c, err
}

// --- checkout ---

type CheckoutInput struct {
	ConfirmReceivable bool `json:"confirmReceivable"`
}

type CheckoutResult struct {
	Sale    domain.Sale      `json:"sale"`
	Receipt receipt.Document `json:"receipt"`
}

// Finalize submits the cart as a sale. The gateway re-prices and deducts
// stock; an invoice-number collision is retried exactly once after a short
// jitter, every other failure propagates untouched with the cart intact.
func (s *Service) Finalize(ctx context.Context, cartID string, input CheckoutInput) (CheckoutResult, error) {
	snap, err := s.carts.BeginFinalize(cartID)
	if err != nil {
		return CheckoutResult{}, err
	}
	cleared := false
	defer func() {
		if err := s.carts.EndFinalize(cartID, cleared); err != nil {
			log.Printf("[service] WARN: finalize release cart=%s: %v", cartID, err)
		}
	}()

	if snap.Empty() {
		return CheckoutResult{}, ErrEmptyCart
	}

	amountPaid := snap.AmountPaid
	if amountPaid < 0 {
		amountPaid = 0
	}
	if amountPaid == 0 && snap.CustomerID == "" && !input.ConfirmReceivable {
		return CheckoutResult{}, ErrConfirmationRequired
	}

	req := domain.SaleRequest{
		Note:       snap.Note,
		AmountPaid: amountPaid,
		Method:     snap.Method,
	}
	if snap.CustomerID != "" {
		id := snap.CustomerID
		req.CustomerID = &id
	}
	for _, line := range snap.Lines {
		req.Items = append(req.Items, domain.SaleItemRequest{
			ProductID: line.ProductID,
			Qty:       line.Qty,
		})
	}

	sale, err := s.gw.CreateSale(ctx, req)
	if errors.Is(err, gateway.ErrConflict) {
		log.Printf("[service] WARN: invoice conflict on cart=%s, retrying once", cartID)
		if werr := s.waitRetry(ctx); werr != nil {
			return CheckoutResult{}, werr
		}
		sale, err = s.gw.CreateSale(ctx, req)
	}
	if err != nil {
		return CheckoutResult{}, err
	}

	merged := mergeSaleLines(sale, snap)
	s.catalogGen.Add(1)

	doc, rerr := receipt.Render(merged, s.settings.Load())
	if rerr != nil {
		log.Printf("[service] WARN: receipt render failed invoice=%s: %v", merged.InvoiceNo, rerr)
	}

	cleared = true
	return CheckoutResult{Sale: merged, Receipt: doc}, nil
}

func (s *Service) waitRetry(ctx context.Context) error {
	timer := time.NewTimer(s.retryDelay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// mergeSaleLines fills gaps in the server's sale echo from the cart that
// produced it. Invoice number, totals and payment status stay server-owned;
// only display fields the gateway may omit (names, units, prices) are patched.
func mergeSaleLines(sale domain.Sale, snap *cart.Cart) domain.Sale {
	if sale.Method == "" {
		sale.Method = snap.Method
	}
	if sale.GrandTotal == 0 {
		sale.GrandTotal = snap.GrandTotal()
	}

	byID := make(map[string]cart.Line, len(snap.Lines))
	for _, line := range snap.Lines {
		byID[line.ProductID] = line
	}

	if len(sale.Items) == 0 {
		for _, line := range snap.Lines {
			sale.Items = append(sale.Items, domain.SaleItem{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Unit:        line.Unit,
				Qty:         line.Qty,
				UnitPrice:   line.UnitPrice,
			})
		}
		return sale
	}

	for i := range sale.Items {
		local, ok := byID[sale.Items[i].ProductID]
		if !ok {
			continue
		}
		if sale.Items[i].ProductName == "" {
			sale.Items[i].ProductName = local.ProductName
		}
		if sale.Items[i].Unit == "" {
			sale.Items[i].Unit = local.Unit
		}
		if sale.Items[i].UnitPrice == 0 {
			sale.Items[i].UnitPrice = local.UnitPrice
		}
	}
	return sale
}

// --- receivables ---

// Sales lists gateway sales; the receivables screen asks for status "open",
// which is also the default.
func (s *Service) Sales(ctx context.Context, status string) ([]domain.Sale, error) {
	if status == "" {
		status = "open"
	}
	return s.gw.ListSales(ctx, status)
}

// RecordPayment validates the amount against the sale's remaining due before
// forwarding. The gateway re-checks; this only catches the obvious cases
// before a round trip.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	if req.Amount <= 0 {
		return domain.Payment{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if req.Method == "" {
		req.Method = domain.PaymentMethodCash
	}

	sales, err := s.gw.ListSales(ctx, "open")
	if err != nil {
		return domain.Payment{}, err
	}
	for _, sale := range sales {
		if sale.ID != req.SaleID {
			continue
		}
		if due := sale.Due(); req.Amount > due {
			return domain.Payment{}, fmt.Errorf("%w: exceeds due %d", ErrInvalidAmount, due)
		}
		break
	}

	return s.gw.CreatePayment(ctx, req)
}

// --- dashboard and reports ---

func (s *Service) Dashboard(ctx context.Context, spanDays int) (domain.Dashboard, error) {
	if spanDays < 1 {
		spanDays = 7
	}
	now := time.Now().In(s.loc)
	from := now.AddDate(0, 0, -(spanDays - 1)).Format("2006-01-02")
	to := now.Format("2006-01-02")

	rep, err := s.gw.SalesReport(ctx, from, to)
	if err != nil {
		return domain.Dashboard{}, err
	}

	dash := domain.Dashboard{
		TodayTotal: report.TodayTotal(rep.List, s.loc),
		TodayCount: report.TodayCount(rep.List, s.loc),
		Chart:      report.AggregateDaily(rep.List, spanDays, s.loc),
	}

	products, err := s.Products(ctx, "")
	if err != nil {
		// The chart is still worth showing when the catalog read fails.
		log.Printf("[service] WARN: dashboard product fetch failed: %v", err)
		return dash, nil
	}
	dash.LowStock = report.LowStock(products, lowStockThreshold)
	dash.NearExpiry = report.NearExpiry(products, nearExpiryWindow, s.loc)
	return dash, nil
}

func (s *Service) SalesReport(ctx context.Context, from, to string) (domain.SalesReport, error) {
	return s.gw.SalesReport(ctx, from, to)
}

func (s *Service) StockInReport(ctx context.Context, from, to string) (domain.StockInReport, error) {
	return s.gw.StockInReport(ctx, from, to)
}

// --- settings ---

func (s *Service) Settings() domain.Settings {
	return s.settings.Load()
}

func (s *Service) UpdateSettings(cfg domain.Settings) (domain.Settings, error) {
	return s.settings.Save(cfg)
}

// --- users (admin screen proxy) ---

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.gw.ListUsers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	return s.gw.CreateUser(ctx, req)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.gw.DeleteUser(ctx, id)
}
