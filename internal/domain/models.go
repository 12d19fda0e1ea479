package domain

import "time"

type Store struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a server-side login session persisted in the database. The
// cookie only carries the session id; user and store are re-attached from
// the database on every authenticated request.
type Session struct {
	ID        string
	UserID    int64
	StoreID   int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Actor is the authenticated principal attached to a request context.
type Actor struct {
	UserID    int64
	Username  string
	Role      string
	StoreID   int64
	StoreCode string
}

type Product struct {
	ID            int64     `json:"id"`
	StoreID       int64     `json:"store_id"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode,omitempty"`
	Category      string    `json:"category,omitempty"`
	PriceCents    int64     `json:"-"`
	CostCents     int64     `json:"-"`
	Price         string    `json:"price"`
	Cost          string    `json:"cost"`
	Stock         int       `json:"stock"`
	MinStockLevel int       `json:"min_stock_level"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Normalize fills the decimal string fields from the cents fields before a
// product is written to a response.
func (p *Product) Normalize() {
	p.Price = FormatCents(p.PriceCents)
	p.Cost = FormatCents(p.CostCents)
}

type ProductCreateRequest struct {
	Name          string `json:"name"`
	Barcode       string `json:"barcode"`
	Category      string `json:"category"`
	Price         string `json:"price"`
	Cost          string `json:"cost"`
	Stock         int    `json:"stock"`
	MinStockLevel int    `json:"min_stock_level"`
}

type ProductUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Barcode       *string `json:"barcode,omitempty"`
	Category      *string `json:"category,omitempty"`
	Price         *string `json:"price,omitempty"`
	Cost          *string `json:"cost,omitempty"`
	MinStockLevel *int    `json:"min_stock_level,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

type Customer struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type BillItem struct {
	ID             int64  `json:"id"`
	BillID         int64  `json:"bill_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"-"`
	TotalCents     int64  `json:"-"`
	UnitPrice      string `json:"price"`
	Total          string `json:"total"`
}

type Bill struct {
	ID            int64      `json:"id"`
	StoreID       int64      `json:"store_id"`
	Number        string     `json:"number"`
	CustomerID    *int64     `json:"customer_id,omitempty"`
	UserID        int64      `json:"user_id"`
	SubtotalCents int64      `json:"-"`
	TaxCents      int64      `json:"-"`
	DiscountCents int64      `json:"-"`
	TotalCents    int64      `json:"-"`
	Subtotal      string     `json:"subtotal"`
	Tax           string     `json:"tax"`
	Discount      string     `json:"discount"`
	Total         string     `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []BillItem `json:"items,omitempty"`
}

func (b *Bill) Normalize() {
	b.Subtotal = FormatCents(b.SubtotalCents)
	b.Tax = FormatCents(b.TaxCents)
	b.Discount = FormatCents(b.DiscountCents)
	b.Total = FormatCents(b.TotalCents)
	for i := range b.Items {
		b.Items[i].UnitPrice = FormatCents(b.Items[i].UnitPriceCents)
		b.Items[i].Total = FormatCents(b.Items[i].TotalCents)
	}
}

type BillItemRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type BillCreateRequest struct {
	CustomerID    *int64            `json:"customer_id,omitempty"`
	Tax           string            `json:"tax"`
	Discount      string            `json:"discount"`
	PaymentMethod string            `json:"payment_method"`
	Items         []BillItemRequest `json:"items"`
}

type BillStatusRequest struct {
	Status string `json:"status"`
}

type InventoryTransaction struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type InventoryAdjustmentRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
}

type ActivityLog struct {
	ID         int64     `json:"id"`
	StoreID    int64     `json:"store_id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type InvoiceTemplate struct {
	ID          int64     `json:"id"`
	StoreID     int64     `json:"store_id"`
	Name        string    `json:"name"`
	HeaderText  string    `json:"header_text,omitempty"`
	FooterText  string    `json:"footer_text,omitempty"`
	AccentColor string    `json:"accent_color"`
	PaperSize   string    `json:"paper_size"`
	ShowBarcode bool      `json:"show_barcode"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type InvoiceTemplateRequest struct {
	Name        string `json:"name"`
	HeaderText  string `json:"header_text"`
	FooterText  string `json:"footer_text"`
	AccentColor string `json:"accent_color"`
	PaperSize   string `json:"paper_size"`
	ShowBarcode bool   `json:"show_barcode"`
}

type RegisterRequest struct {
	StoreName string `json:"store_name"`
	StoreCode string `json:"store_code"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	StoreCode string `json:"store_code"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type AuthResponse struct {
	User  User  `json:"user"`
	Store Store `json:"store"`
}

type TopProduct struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	SalesCents int64  `json:"-"`
	Sales      string `json:"sales"`
}

type DashboardStats struct {
	TodaySalesCents int64        `json:"-"`
	TodaySales      string       `json:"today_sales"`
	TodayBills      int64        `json:"today_bills"`
	LowStockCount   int64        `json:"low_stock_count"`
	CustomerCount   int64        `json:"customer_count"`
	TopProducts     []TopProduct `json:"top_products"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

func (d *DashboardStats) Normalize() {
	d.TodaySales = FormatCents(d.TodaySalesCents)
	for i := range d.TopProducts {
		d.TopProducts[i].Sales = FormatCents(d.TopProducts[i].SalesCents)
	}
}

type SalesReportDay struct {
	Date       string `json:"date"`
	Bills      int64  `json:"bills"`
	TotalCents int64  `json:"-"`
	Total      string `json:"total"`
}

type SalesReport struct {
	StoreID     int64            `json:"store_id"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Bills       int64            `json:"bills"`
	GrossCents  int64            `json:"-"`
	Gross       string           `json:"gross"`
	TaxCents    int64            `json:"-"`
	Tax         string           `json:"tax"`
	ByDay       []SalesReportDay `json:"by_day"`
	TopProducts []TopProduct     `json:"top_products"`
}

func (r *SalesReport) Normalize() {
	r.Gross = FormatCents(r.GrossCents)
	r.Tax = FormatCents(r.TaxCents)
	for i := range r.ByDay {
		r.ByDay[i].Total = FormatCents(r.ByDay[i].TotalCents)
	}
	for i := range r.TopProducts {
		r.TopProducts[i].Sales = FormatCents(r.TopProducts[i].SalesCents)
	}
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	BillStatusPaid      = "paid"
	BillStatusPending   = "pending"
	BillStatusCancelled = "cancelled"
)

const (
	InventoryReasonPurchase   = "purchase"
	InventoryReasonSale       = "sale"
	InventoryReasonAdjustment = "adjustment"
)
