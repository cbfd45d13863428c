// Package httpapi exposes the terminal's local endpoints for the cashier UI.
// Everything durable is proxied to the remote gateway; only cart sessions,
// settings and the login session live on this side.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bumdespos/terminal/internal/cart"
	"bumdespos/terminal/internal/domain"
	"bumdespos/terminal/internal/export"
	"bumdespos/terminal/internal/gateway"
	"bumdespos/terminal/internal/service"
)

type API struct {
	service       *service.Service
	allowedOrigin string
}

func New(svc *service.Service, allowedOrigin string) *API {
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", a.requireSession(a.handleLogout))
	mux.HandleFunc("/api/v1/auth/session", a.handleSession)

	mux.HandleFunc("/api/v1/products", a.requireSession(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireSession(a.handleProductActions))
	mux.HandleFunc("/api/v1/customers", a.requireSession(a.handleCustomers))
	mux.HandleFunc("/api/v1/customers/", a.requireSession(a.handleCustomerActions))

	mux.HandleFunc("/api/v1/carts", a.requireSession(a.handleCarts))
	mux.HandleFunc("/api/v1/carts/", a.requireSession(a.handleCartActions))

	mux.HandleFunc("/api/v1/sales", a.requireSession(a.handleSales))
	mux.HandleFunc("/api/v1/payments", a.requireSession(a.handlePayments))
	mux.HandleFunc("/api/v1/dashboard", a.requireSession(a.handleDashboard))
	mux.HandleFunc("/api/v1/reports/sales", a.requireSession(a.handleSalesReport))
	mux.HandleFunc("/api/v1/reports/stock-in", a.requireSession(a.handleStockInReport))
	mux.HandleFunc("/api/v1/settings", a.requireSession(a.handleSettings))
	mux.HandleFunc("/api/v1/users", a.requireSession(a.handleUsers))
	mux.HandleFunc("/api/v1/users/", a.requireSession(a.handleUserActions))

	return a.withMiddleware(mux)
}

// requireSession gates every endpoint except login behind a live login. The
// gateway still authorizes each proxied call; this check only gives the UI a
// clean 401 to redirect on instead of a half-rendered view.
func (a *API) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.service.Session().Active() {
			writeError(w, http.StatusUnauthorized, errors.New("no active session"))
			return
		}
		next(w, r)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- auth ---

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": state})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.service.Logout()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	state := a.service.Session()
	if !state.Active() {
		writeError(w, http.StatusUnauthorized, errors.New("no active session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": state})
}

// --- catalog proxies ---

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.Products(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("missing product id"))
		return
	}

	switch {
	case action == "add-stock" && r.Method == http.MethodPost:
		var req domain.AddStockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.service.AddStock(r.Context(), id, req); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case action == "" && r.Method == http.MethodPut:
		var req domain.ProductUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case action == "" && r.Method == http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.Customers(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var req domain.CustomerUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/customers/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("missing customer id"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req domain.CustomerUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.UpdateCustomer(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if err := a.service.DeleteCustomer(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- carts ---

func (a *API) handleCarts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	c := a.service.CreateCart()
	writeJSON(w, http.StatusCreated, map[string]any{"cart": c})
}

func (a *API) handleCartActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/carts/")
	cartID, action, _ := strings.Cut(rest, "/")
	if cartID == "" {
		writeError(w, http.StatusNotFound, errors.New("missing cart id"))
		return
	}

	switch {
	case action == "":
		a.handleCart(w, r, cartID)
	case action == "checkout":
		a.handleCheckout(w, r, cartID)
	case action == "lines":
		a.handleCartLines(w, r, cartID)
	case strings.HasPrefix(action, "lines/"):
		a.handleCartLine(w, r, cartID, strings.TrimPrefix(action, "lines/"))
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown cart action"))
	}
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request, cartID string) {
	switch r.Method {
	case http.MethodGet:
		c, err := a.service.GetCart(cartID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": c})
	case http.MethodPatch:
		var meta service.CartMeta
		if err := decodeJSON(r, &meta); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c, err := a.service.UpdateCartMeta(cartID, meta)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": c})
	case http.MethodDelete:
		a.service.DiscardCart(cartID)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartLines(w http.ResponseWriter, r *http.Request, cartID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, notice, err := a.service.AddCartLine(r.Context(), cartID, req.ProductID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeCart(w, c, notice)
}

func (a *API) handleCartLine(w http.ResponseWriter, r *http.Request, cartID, productID string) {
	if productID == "" || strings.Contains(productID, "/") {
		writeError(w, http.StatusNotFound, errors.New("missing product id"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Qty int `json:"qty"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c, notice, err := a.service.SetCartQuantity(cartID, productID, req.Qty)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeCart(w, c, notice)
	case http.MethodDelete:
		c, err := a.service.RemoveCartLine(cartID, productID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeCart(w, c, "")
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request, cartID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var input service.CheckoutInput
	if err := decodeJSON(r, &input); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.Finalize(r.Context(), cartID, input)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func writeCart(w http.ResponseWriter, c *cart.Cart, notice cart.Notice) {
	payload := map[string]any{"cart": c}
	if notice != "" {
		payload["notice"] = string(notice)
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- receivables ---

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.service.Sales(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payment, err := a.service.RecordPayment(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payment": payment})
}

// --- dashboard and reports ---

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	span := parsePositiveLimit(r.URL.Query().Get("span"), 7, 30)
	dash, err := a.service.Dashboard(r.Context(), span)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to := reportRange(r)
	rep, err := a.service.SalesReport(r.Context(), from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="laporan-penjualan.csv"`)
		_, _ = w.Write([]byte(export.SalesCSV(rep)))
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="laporan-penjualan.xlsx"`)
		if err := export.WriteSalesXLSX(w, rep); err != nil {
			log.Printf("sales xlsx export: %v", err)
		}
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (a *API) handleStockInReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	from, to := reportRange(r)
	rep, err := a.service.StockInReport(r.Context(), from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="laporan-stok-masuk.csv"`)
		_, _ = w.Write([]byte(export.StockInCSV(rep)))
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="laporan-stok-masuk.xlsx"`)
		if err := export.WriteStockInXLSX(w, rep); err != nil {
			log.Printf("stock-in xlsx export: %v", err)
		}
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

// reportRange defaults to the current month when from/to are absent.
func reportRange(r *http.Request) (string, string) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	now := time.Now()
	if from == "" {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	}
	if to == "" {
		to = now.Format("2006-01-02")
	}
	return from, to
}

// --- settings ---

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"settings": a.service.Settings()})
	case http.MethodPut:
		var cfg domain.Settings
		if err := decodeJSON(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.UpdateSettings(cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": saved})
	default:
		writeMethodNotAllowed(w)
	}
}

// --- users ---

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.service.ListUsers(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var req domain.UserCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.service.CreateUser(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleUserActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("missing user id"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.DeleteUser(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- helpers ---

// statusFor maps service and gateway errors onto local HTTP statuses. A
// gateway 401 surfaces as 401 here so the UI forces a re-login.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrConflict),
		errors.Is(err, cart.ErrFinalizeInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, gateway.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrValidation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic so gateway internals never leak to the browser.
	msg := err.Error()
	if status >= 500 && status != http.StatusBadGateway {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
