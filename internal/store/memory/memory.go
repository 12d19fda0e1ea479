package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokobill/backend/internal/domain"
	"tokobill/backend/internal/refno"
	"tokobill/backend/internal/store"
)

// Store is an in-memory Repository used for development without a database
// and for tests. All mutations happen under one mutex, which gives the same
// all-or-nothing behaviour the postgres implementation gets from a
// transaction.
type Store struct {
	mu sync.RWMutex

	nextID map[string]int64

	stores    map[int64]domain.Store
	users     map[int64]domain.User
	sessions  map[string]domain.Session
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	bills     map[int64]domain.Bill
	templates map[int64]domain.InvoiceTemplate

	inventoryLog []domain.InventoryTransaction
	activityLog  []domain.ActivityLog
}

func New() *Store {
	return &Store{
		nextID:    map[string]int64{},
		stores:    map[int64]domain.Store{},
		users:     map[int64]domain.User{},
		sessions:  map[string]domain.Session{},
		products:  map[int64]domain.Product{},
		customers: map[int64]domain.Customer{},
		bills:     map[int64]domain.Bill{},
		templates: map[int64]domain.InvoiceTemplate{},
	}
}

// NewSeeded builds a store pre-loaded with two tenants for dev/demo mode.
// Seed passwords come from SEED_ADMIN_PASSWORD / SEED_STAFF_PASSWORD; the
// hardcoded defaults are dev-only (the backend uses PostgreSQL when
// DATABASE_URL is set).
func NewSeeded() *Store {
	s := New()
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "secret1")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	ctx := context.Background()
	now := time.Now().UTC()

	main, _ := s.CreateStore(ctx, domain.Store{Name: "Main Street Mart", Code: "MAIN01", Address: "1 Main St", Phone: "+620000000001"})
	other, _ := s.CreateStore(ctx, domain.Store{Name: "Other Outlet", Code: "OTHER1", Address: "2 Side St", Phone: "+620000000002"})

	_, _ = s.CreateUser(ctx, domain.User{StoreID: main.ID, Username: "alice", Password: mustHash(adminPwd), Role: domain.RoleAdmin, Active: true, CreatedAt: now})
	_, _ = s.CreateUser(ctx, domain.User{StoreID: main.ID, Username: "budi", Password: mustHash(staffPwd), Role: domain.RoleStaff, Active: true, CreatedAt: now})
	_, _ = s.CreateUser(ctx, domain.User{StoreID: other.ID, Username: "carol", Password: mustHash(adminPwd), Role: domain.RoleAdmin, Active: true, CreatedAt: now})

	seedProducts := []domain.Product{
		{StoreID: main.ID, Name: "House Blend Coffee", Barcode: "8990000000011", Category: "beverage", PriceCents: 1000, CostCents: 600, Stock: 5, MinStockLevel: 2, Active: true},
		{StoreID: main.ID, Name: "Instant Noodles", Barcode: "8990000000028", Category: "grocery", PriceCents: 350, CostCents: 250, Stock: 40, MinStockLevel: 10, Active: true},
		{StoreID: main.ID, Name: "Mineral Water 600ml", Barcode: "8990000000035", Category: "beverage", PriceCents: 300, CostCents: 180, Stock: 24, MinStockLevel: 12, Active: true},
		{StoreID: other.ID, Name: "Notebook A5", Barcode: "8990000000042", Category: "stationery", PriceCents: 1500, CostCents: 900, Stock: 12, MinStockLevel: 4, Active: true},
	}
	for _, p := range seedProducts {
		_, _ = s.CreateProduct(ctx, p)
	}

	_, _ = s.CreateCustomer(ctx, domain.Customer{StoreID: main.ID, Name: "Walk-in Regular", Phone: "+6281200000001"})

	_, _ = s.CreateInvoiceTemplate(ctx, domain.InvoiceTemplate{
		StoreID:     main.ID,
		Name:        "Classic",
		HeaderText:  "Main Street Mart",
		FooterText:  "Thank you for shopping with us",
		AccentColor: "#1a4d8f",
		PaperSize:   "80mm",
		ShowBarcode: true,
	})

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return string(hash)
}

func (s *Store) id(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

// --- stores ---

func (s *Store) CreateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := strings.ToUpper(strings.TrimSpace(st.Code))
	for _, existing := range s.stores {
		if existing.Code == code {
			return nil, store.ErrConflict
		}
	}
	st.ID = s.id("store")
	st.Code = code
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.stores[st.ID] = st
	created := st
	return &created, nil
}

func (s *Store) GetStoreByCode(_ context.Context, code string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	for _, st := range s.stores {
		if st.Code == code {
			found := st
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetStoreByID(_ context.Context, id int64) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := st
	return &found, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(u.Username))
	for _, existing := range s.users {
		if existing.StoreID == u.StoreID && existing.Username == username {
			return nil, store.ErrConflict
		}
	}
	u.ID = s.id("user")
	u.Username = username
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	created := u
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, storeID int64, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, u := range s.users {
		if u.StoreID == storeID && u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := u
	return &found, nil
}

// --- sessions ---

func (s *Store) CreateSession(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		return store.ErrInvalid
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := sess
	return &found, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(0)
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// --- products ---

func (s *Store) ListProducts(_ context.Context, storeID int64) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID == storeID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, storeID int64) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.StoreID == storeID && p.Active && p.Stock <= p.MinStockLevel {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id("product")
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = p
	created := p
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.StoreID = existing.StoreID
	// Stock moves only through bills and adjustments; a stale read on the
	// caller's side must not overwrite a concurrent decrement.
	p.Stock = existing.Stock
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = p
	updated := p
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// --- customers ---

func (s *Store) ListCustomers(_ context.Context, storeID int64) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.StoreID == storeID {
			customers = append(customers, c)
		}
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id("customer")
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.customers[c.ID] = c
	created := c
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[c.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.StoreID = existing.StoreID
	c.CreatedAt = existing.CreatedAt
	s.customers[c.ID] = c
	updated := c
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// --- bills ---

func (s *Store) CreateBill(_ context.Context, bill domain.Bill, activity domain.ActivityLog) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}

	// Validate every line before touching any state so a failing item
	// leaves nothing behind.
	for _, item := range bill.Items {
		p, ok := s.products[item.ProductID]
		if !ok || p.StoreID != bill.StoreID {
			return nil, store.ErrNotFound
		}
		if !p.Active {
			return nil, store.ErrInvalid
		}
		if item.Quantity < 1 {
			return nil, store.ErrInvalid
		}
		if p.Stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	bill.ID = s.id("bill")
	if bill.Number == "" {
		bill.Number = refno.Bill(now)
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	if bill.Status == "" {
		bill.Status = domain.BillStatusPaid
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		item.ID = s.id("bill_item")
		item.BillID = bill.ID

		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = now
		s.products[item.ProductID] = p

		s.inventoryLog = append(s.inventoryLog, domain.InventoryTransaction{
			ID:        s.id("inventory"),
			StoreID:   bill.StoreID,
			ProductID: item.ProductID,
			Quantity:  -item.Quantity,
			Reason:    domain.InventoryReasonSale,
			Note:      bill.Number,
			CreatedAt: now,
		})
	}

	activity.ID = s.id("activity")
	activity.StoreID = bill.StoreID
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	s.activityLog = append(s.activityLog, activity)

	s.bills[bill.ID] = bill
	created := bill
	return &created, nil
}

func (s *Store) ListBills(_ context.Context, storeID int64, limit int) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	bills := make([]domain.Bill, 0, limit)
	for _, b := range s.bills {
		if b.StoreID == storeID {
			bills = append(bills, b)
		}
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].ID > bills[j].ID })
	if len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func (s *Store) GetBillByID(_ context.Context, id int64) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := b
	found.Items = append([]domain.BillItem(nil), b.Items...)
	return &found, nil
}

func (s *Store) UpdateBillStatus(_ context.Context, id int64, status string) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	b.Status = status
	s.bills[id] = b
	updated := b
	updated.Items = append([]domain.BillItem(nil), b.Items...)
	return &updated, nil
}

// --- inventory ---

func (s *Store) ListInventoryTransactions(_ context.Context, storeID int64, limit int) ([]domain.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	entries := make([]domain.InventoryTransaction, 0, limit)
	for i := len(s.inventoryLog) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.inventoryLog[i].StoreID == storeID {
			entries = append(entries, s.inventoryLog[i])
		}
	}
	return entries, nil
}

func (s *Store) AdjustStock(_ context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[entry.ProductID]
	if !ok || p.StoreID != entry.StoreID {
		return nil, store.ErrNotFound
	}
	next := p.Stock + entry.Quantity
	if next < 0 {
		return nil, store.ErrInsufficientStock
	}

	now := time.Now().UTC()
	p.Stock = next
	p.UpdatedAt = now
	s.products[entry.ProductID] = p

	entry.ID = s.id("inventory")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	s.inventoryLog = append(s.inventoryLog, entry)
	created := entry
	return &created, nil
}

// --- invoice templates ---

func (s *Store) ListInvoiceTemplates(_ context.Context, storeID int64) ([]domain.InvoiceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]domain.InvoiceTemplate, 0, 4)
	for _, t := range s.templates {
		if t.StoreID == storeID {
			templates = append(templates, t)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func (s *Store) CreateInvoiceTemplate(_ context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First template for a store becomes the default.
	hasAny := false
	for _, existing := range s.templates {
		if existing.StoreID == t.StoreID {
			hasAny = true
			break
		}
	}
	t.IsDefault = !hasAny

	t.ID = s.id("template")
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.templates[t.ID] = t
	created := t
	return &created, nil
}

func (s *Store) GetInvoiceTemplateByID(_ context.Context, id int64) (*domain.InvoiceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := t
	return &found, nil
}

func (s *Store) UpdateInvoiceTemplate(_ context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[t.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.StoreID = existing.StoreID
	t.IsDefault = existing.IsDefault
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.templates[t.ID] = t
	updated := t
	return &updated, nil
}

func (s *Store) SetDefaultInvoiceTemplate(_ context.Context, storeID int64, templateID int64) (*domain.InvoiceTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.templates[templateID]
	if !ok || target.StoreID != storeID {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	for id, t := range s.templates {
		if t.StoreID != storeID {
			continue
		}
		wasDefault := t.IsDefault
		t.IsDefault = id == templateID
		if t.IsDefault != wasDefault {
			t.UpdatedAt = now
		}
		s.templates[id] = t
	}
	updated := s.templates[templateID]
	return &updated, nil
}

func (s *Store) DeleteInvoiceTemplate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.IsDefault {
		return store.ErrDefaultTemplate
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) GetDefaultInvoiceTemplate(_ context.Context, storeID int64) (*domain.InvoiceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.StoreID == storeID && t.IsDefault {
			found := t
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// --- activity logs ---

func (s *Store) CreateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.id("activity")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activityLog = append(s.activityLog, entry)
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, storeID int64, filter store.ActivityFilter) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	entries := make([]domain.ActivityLog, 0, limit)
	for i := len(s.activityLog) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := s.activityLog[i]
		if entry.StoreID != storeID {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !entry.CreatedAt.Before(filter.To) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// --- aggregates ---

func (s *Store) GetDashboardStats(_ context.Context, storeID int64, now time.Time) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.DashboardStats{GeneratedAt: now, TopProducts: []domain.TopProduct{}}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := now.AddDate(0, 0, -30)

	type agg struct {
		name  string
		qty   int64
		sales int64
	}
	top := map[int64]*agg{}

	for _, b := range s.bills {
		if b.StoreID != storeID || b.Status == domain.BillStatusCancelled {
			continue
		}
		if !b.CreatedAt.Before(dayStart) {
			stats.TodayBills++
			stats.TodaySalesCents += b.TotalCents
		}
		if b.CreatedAt.Before(monthStart) {
			continue
		}
		for _, item := range b.Items {
			entry := top[item.ProductID]
			if entry == nil {
				entry = &agg{name: item.ProductName}
				top[item.ProductID] = entry
			}
			entry.qty += int64(item.Quantity)
			entry.sales += item.TotalCents
		}
	}

	for _, p := range s.products {
		if p.StoreID == storeID && p.Active && p.Stock <= p.MinStockLevel {
			stats.LowStockCount++
		}
	}
	for _, c := range s.customers {
		if c.StoreID == storeID {
			stats.CustomerCount++
		}
	}

	for id, entry := range top {
		stats.TopProducts = append(stats.TopProducts, domain.TopProduct{
			ProductID:  id,
			Name:       entry.name,
			Quantity:   entry.qty,
			SalesCents: entry.sales,
		})
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		if stats.TopProducts[i].Quantity == stats.TopProducts[j].Quantity {
			return stats.TopProducts[i].ProductID < stats.TopProducts[j].ProductID
		}
		return stats.TopProducts[i].Quantity > stats.TopProducts[j].Quantity
	})
	if len(stats.TopProducts) > 5 {
		stats.TopProducts = stats.TopProducts[:5]
	}

	return stats, nil
}

func (s *Store) GetSalesReport(_ context.Context, storeID int64, from time.Time, to time.Time) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		StoreID:     storeID,
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		ByDay:       []domain.SalesReportDay{},
		TopProducts: []domain.TopProduct{},
	}

	byDay := map[string]*domain.SalesReportDay{}
	type agg struct {
		name  string
		qty   int64
		sales int64
	}
	top := map[int64]*agg{}

	for _, b := range s.bills {
		if b.StoreID != storeID || b.Status == domain.BillStatusCancelled {
			continue
		}
		if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
			continue
		}
		report.Bills++
		report.GrossCents += b.TotalCents
		report.TaxCents += b.TaxCents

		day := b.CreatedAt.UTC().Format("2006-01-02")
		entry := byDay[day]
		if entry == nil {
			entry = &domain.SalesReportDay{Date: day}
			byDay[day] = entry
		}
		entry.Bills++
		entry.TotalCents += b.TotalCents

		for _, item := range b.Items {
			t := top[item.ProductID]
			if t == nil {
				t = &agg{name: item.ProductName}
				top[item.ProductID] = t
			}
			t.qty += int64(item.Quantity)
			t.sales += item.TotalCents
		}
	}

	for _, entry := range byDay {
		report.ByDay = append(report.ByDay, *entry)
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Date < report.ByDay[j].Date })

	for id, entry := range top {
		report.TopProducts = append(report.TopProducts, domain.TopProduct{
			ProductID:  id,
			Name:       entry.name,
			Quantity:   entry.qty,
			SalesCents: entry.sales,
		})
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		if report.TopProducts[i].Quantity == report.TopProducts[j].Quantity {
			return report.TopProducts[i].ProductID < report.TopProducts[j].ProductID
		}
		return report.TopProducts[i].Quantity > report.TopProducts[j].Quantity
	})
	if len(report.TopProducts) > 10 {
		report.TopProducts = report.TopProducts[:10]
	}

	return report, nil
}
