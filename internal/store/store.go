package store

import (
	"context"
	"errors"
	"time"

	"tokobill/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalid           = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDefaultTemplate   = errors.New("default template cannot be deleted")
)

// ActivityFilter bounds an activity-log listing.
type ActivityFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Repository is the tenant-scoped persistence contract. Every method that
// touches tenant data takes the owning store id and must never return rows
// belonging to another store.
type Repository interface {
	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	GetStoreByCode(ctx context.Context, code string) (*domain.Store, error)
	GetStoreByID(ctx context.Context, id int64) (*domain.Store, error)

	CreateUser(ctx context.Context, u domain.User) (*domain.User, error)
	GetUserByUsername(ctx context.Context, storeID int64, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	ListProducts(ctx context.Context, storeID int64) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context, storeID int64) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context, storeID int64) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	// CreateBill writes the bill row, its items, the per-item stock
	// decrements, the matching inventory transactions and one activity-log
	// row in a single database transaction. Either everything commits or
	// nothing does.
	CreateBill(ctx context.Context, bill domain.Bill, activity domain.ActivityLog) (*domain.Bill, error)
	ListBills(ctx context.Context, storeID int64, limit int) ([]domain.Bill, error)
	GetBillByID(ctx context.Context, id int64) (*domain.Bill, error)
	UpdateBillStatus(ctx context.Context, id int64, status string) (*domain.Bill, error)

	ListInventoryTransactions(ctx context.Context, storeID int64, limit int) ([]domain.InventoryTransaction, error)
	// AdjustStock applies a signed stock delta and records the inventory
	// transaction atomically. Stock never goes negative.
	AdjustStock(ctx context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error)

	ListInvoiceTemplates(ctx context.Context, storeID int64) ([]domain.InvoiceTemplate, error)
	CreateInvoiceTemplate(ctx context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error)
	GetInvoiceTemplateByID(ctx context.Context, id int64) (*domain.InvoiceTemplate, error)
	UpdateInvoiceTemplate(ctx context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error)
	// SetDefaultInvoiceTemplate swaps the default flag in one transaction so
	// exactly one template per store stays default.
	SetDefaultInvoiceTemplate(ctx context.Context, storeID int64, templateID int64) (*domain.InvoiceTemplate, error)
	DeleteInvoiceTemplate(ctx context.Context, id int64) error
	GetDefaultInvoiceTemplate(ctx context.Context, storeID int64) (*domain.InvoiceTemplate, error)

	CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error
	ListActivityLogs(ctx context.Context, storeID int64, filter ActivityFilter) ([]domain.ActivityLog, error)

	GetDashboardStats(ctx context.Context, storeID int64, now time.Time) (domain.DashboardStats, error)
	GetSalesReport(ctx context.Context, storeID int64, from time.Time, to time.Time) (domain.SalesReport, error)
}
