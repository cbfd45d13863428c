package domain

import "time"

// Product is a read snapshot owned by the remote gateway. Stock quantity is
// authoritative on the server; local copies only bound cart quantities.
type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Unit       string     `json:"unit"`
	CostPrice  int64      `json:"costPrice"`
	SellPrice  int64      `json:"sellPrice"`
	StockQty   int        `json:"stockQty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	ImageURL   string     `json:"imageUrl,omitempty"`
}

type ProductUpsertRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Unit      string `json:"unit"`
	CostPrice int64  `json:"costPrice"`
	SellPrice int64  `json:"sellPrice"`
	StockQty  int    `json:"stockQty"`
	Expiry    string `json:"expiryDate,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type AddStockRequest struct {
	Qty      int   `json:"qty"`
	UnitCost int64 `json:"unitCost"`
	Note     string `json:"note,omitempty"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type CustomerUpsertRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// SaleItemRequest carries product id and quantity only. Prices are never sent;
// the gateway re-prices every line from its own product table.
type SaleItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type SaleRequest struct {
	CustomerID *string           `json:"customerId"`
	Note       string            `json:"note"`
	Items      []SaleItemRequest `json:"items"`
	AmountPaid int64             `json:"amountPaid"`
	Method     string            `json:"method"`
}

type SaleItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unitPrice"`
}

// Sale is owned by the gateway once created. PaymentStatus is always the
// server-reported value; Due is a read-side display derivation only.
type Sale struct {
	ID            string     `json:"id"`
	InvoiceNo     string     `json:"invoiceNo"`
	Date          time.Time  `json:"date"`
	CustomerID    *string    `json:"customerId"`
	CustomerName  string     `json:"customerName,omitempty"`
	Note          string     `json:"note,omitempty"`
	Items         []SaleItem `json:"items,omitempty"`
	GrandTotal    int64      `json:"grandTotal"`
	AmountPaid    int64      `json:"amountPaid"`
	Method        string     `json:"method,omitempty"`
	PaymentStatus string     `json:"paymentStatus"`
	Payments      []Payment  `json:"payments,omitempty"`
}

// Due is the remaining receivable shown to the cashier, clamped at zero.
func (s Sale) Due() int64 {
	due := s.GrandTotal - s.AmountPaid
	if due < 0 {
		return 0
	}
	return due
}

type Payment struct {
	ID     string    `json:"id"`
	SaleID string    `json:"saleId"`
	Amount int64     `json:"amount"`
	Method string    `json:"method"`
	RefNo  string    `json:"refNo,omitempty"`
	Date   time.Time `json:"date"`
}

type PaymentRequest struct {
	SaleID string `json:"saleId"`
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	RefNo  string `json:"refNo,omitempty"`
}

type SalesReport struct {
	Total int64  `json:"total"`
	List  []Sale `json:"list"`
}

type StockMovement struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	ProductName string    `json:"productName"`
	Qty         int       `json:"qty"`
	UnitCost    int64     `json:"unitCost"`
	Value       int64     `json:"value"`
	Note        string    `json:"note,omitempty"`
}

type StockInReport struct {
	TotalQty   int             `json:"totalQty"`
	TotalValue int64           `json:"totalValue"`
	List       []StockMovement `json:"list"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Settings are terminal-local only: persisted next to the process, never sent
// to the gateway.
type Settings struct {
	ReceiptWidthMM int    `json:"receiptWidth"`
	StoreName      string `json:"storeName"`
	StoreAddress   string `json:"storeAddress"`
	StorePhone     string `json:"storePhone"`
}

type DailyBucket struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
}

type Dashboard struct {
	TodayTotal int64         `json:"todayTotal"`
	TodayCount int           `json:"todayCount"`
	Chart      []DailyBucket `json:"chart"`
	LowStock   []Product     `json:"lowStock"`
	NearExpiry []Product     `json:"nearExpiry"`
}

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusOpen    = "open"
)

// Counter sales are always "Tunai"; debt payments may also arrive by transfer
// or QRIS.
const (
	PaymentMethodCash     = "Tunai"
	PaymentMethodTransfer = "Transfer"
	PaymentMethodQRIS     = "QRIS"
)

const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "KASIR"
	RoleViewer  = "VIEWER"
)
