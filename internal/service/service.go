package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokobill/backend/internal/cache"
	"tokobill/backend/internal/domain"
	"tokobill/backend/internal/refno"
	"tokobill/backend/internal/sms"
	"tokobill/backend/internal/store"
)

var (
	// ErrBadStoreCode is returned when a login names a store that does not
	// exist. Every other credential failure collapses into ErrBadCredentials
	// so usernames cannot be enumerated.
	ErrBadStoreCode   = errors.New("invalid store code")
	ErrBadCredentials = errors.New("invalid username or password")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	stats      cache.StatsCache
	notifier   sms.Notifier
	logger     *zap.Logger
	sessionTTL time.Duration
	statsTTL   time.Duration
}

func New(repo store.Repository, stats cache.StatsCache, notifier sms.Notifier, logger *zap.Logger, sessionTTL time.Duration, statsTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:       repo,
		stats:      stats,
		notifier:   notifier,
		logger:     logger,
		sessionTTL: sessionTTL,
		statsTTL:   statsTTL,
	}
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, store.ErrForbidden
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, store.ErrForbidden
	}
	return actor, nil
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, store.ErrForbidden
	}
	return actor, nil
}

// logAudit records an activity-log row best effort. Audit writes never fail
// the calling operation.
func (s *Service) logAudit(ctx context.Context, storeID int64, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateActivityLog(ctx, domain.ActivityLog{
		StoreID:    storeID,
		Username:   actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("activity log write failed",
			zap.String("action", action),
			zap.Int64("store_id", storeID),
			zap.Error(err),
		)
	}
}

// --- auth ---

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	req.StoreName = strings.TrimSpace(req.StoreName)
	req.StoreCode = strings.ToUpper(strings.TrimSpace(req.StoreCode))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))

	if req.StoreName == "" || req.StoreCode == "" || req.Username == "" {
		return nil, store.ErrInvalid
	}
	if len(req.Password) < 6 {
		return nil, store.ErrInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateStore(ctx, domain.Store{
		Name:    req.StoreName,
		Code:    req.StoreCode,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return nil, err
	}

	admin, err := s.repo.CreateUser(ctx, domain.User{
		StoreID:  created.ID,
		Username: req.Username,
		Password: string(hash),
		Role:     domain.RoleAdmin,
		Active:   true,
	})
	if err != nil {
		return nil, err
	}

	// Every new store starts with a usable receipt template.
	if _, err := s.repo.CreateInvoiceTemplate(ctx, domain.InvoiceTemplate{
		StoreID:     created.ID,
		Name:        "Classic",
		AccentColor: "#1f2937",
		PaperSize:   "thermal-80",
		ShowBarcode: true,
	}); err != nil {
		s.logger.Warn("default template seed failed", zap.Int64("store_id", created.ID), zap.Error(err))
	}

	s.logAudit(ctx, created.ID, "store_register", "store", fmt.Sprintf("%d", created.ID), "code="+created.Code)

	return &domain.AuthResponse{User: *admin, Store: *created}, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.StoreCode))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if code == "" {
		return nil, ErrBadStoreCode
	}

	st, err := s.repo.GetStoreByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadStoreCode
		}
		return nil, err
	}

	user, err := s.repo.GetUserByUsername(ctx, st.ID, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash comparison so unknown usernames cost the same as
			// wrong passwords.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(req.Password),
			)
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrBadCredentials
	}

	return &domain.AuthResponse{User: *user, Store: *st}, nil
}

// CreateSession persists a server-side session row and returns it. The HTTP
// layer wraps the id in a signed cookie; the row stays authoritative.
func (s *Service) CreateSession(ctx context.Context, user domain.User) (*domain.Session, error) {
	now := time.Now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		StoreID:   user.StoreID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ResolveSession loads a session row and rebuilds the acting principal.
// Expired sessions are deleted on sight.
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (domain.Actor, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Actor{}, err
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, sessionID)
		return domain.Actor{}, store.ErrNotFound
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return domain.Actor{}, err
	}
	if !user.Active {
		return domain.Actor{}, store.ErrNotFound
	}
	st, err := s.repo.GetStoreByID(ctx, session.StoreID)
	if err != nil {
		return domain.Actor{}, err
	}

	return domain.Actor{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		StoreID:   st.ID,
		StoreCode: st.Code,
	}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	err := s.repo.DeleteSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) Me(ctx context.Context) (*domain.AuthResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetStoreByID(ctx, actor.StoreID)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{User: *user, Store: *st}, nil
}

// PurgeExpiredSessions is called periodically from cmd/server.
func (s *Service) PurgeExpiredSessions(ctx context.Context) {
	n, err := s.repo.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("session purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("count", n))
	}
}

// --- products ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, actor.StoreID)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Normalize()
	}
	return products, nil
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListLowStockProducts(ctx, actor.StoreID)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Normalize()
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Stock < 0 || req.MinStockLevel < 0 {
		return nil, store.ErrInvalid
	}
	priceCents, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, store.ErrInvalid
	}
	costCents := int64(0)
	if strings.TrimSpace(req.Cost) != "" {
		costCents, err = domain.ParseAmount(req.Cost)
		if err != nil {
			return nil, store.ErrInvalid
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		StoreID:       actor.StoreID,
		Name:          req.Name,
		Barcode:       strings.TrimSpace(req.Barcode),
		Category:      strings.TrimSpace(req.Category),
		PriceCents:    priceCents,
		CostCents:     costCents,
		MinStockLevel: req.MinStockLevel,
		Active:        true,
	})
	if err != nil {
		return nil, err
	}

	// Initial stock enters through an inventory transaction so the trail
	// starts at the first unit.
	if req.Stock > 0 {
		if _, err := s.repo.AdjustStock(ctx, domain.InventoryTransaction{
			StoreID:   actor.StoreID,
			ProductID: created.ID,
			Quantity:  req.Stock,
			Reason:    domain.InventoryReasonPurchase,
			Note:      "initial stock",
		}); err != nil {
			return nil, err
		}
		created.Stock = req.Stock
	}

	s.logAudit(ctx, actor.StoreID, "product_create", "product", fmt.Sprintf("%d", created.ID),
		fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))

	created.Normalize()
	return created, nil
}

func (s *Service) getOwnedProduct(ctx context.Context, actor domain.Actor, id int64) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.StoreID != actor.StoreID {
		return nil, store.ErrForbidden
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	product, err := s.getOwnedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	product.Normalize()
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.getOwnedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, store.ErrInvalid
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		cents, err := domain.ParseAmount(*req.Price)
		if err != nil {
			return nil, store.ErrInvalid
		}
		updated.PriceCents = cents
	}
	if req.Cost != nil {
		cents, err := domain.ParseAmount(*req.Cost)
		if err != nil {
			return nil, store.ErrInvalid
		}
		updated.CostCents = cents
	}
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return nil, store.ErrInvalid
		}
		updated.MinStockLevel = *req.MinStockLevel
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor.StoreID, "product_update", "product", fmt.Sprintf("%d", saved.ID),
		fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))

	saved.Normalize()
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getOwnedProduct(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor.StoreID, "product_delete", "product", fmt.Sprintf("%d", id), "")
	return nil
}

// --- customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, actor.StoreID)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (*domain.Customer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalid
	}
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		StoreID: actor.StoreID,
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor.StoreID, "customer_create", "customer", fmt.Sprintf("%d", created.ID), "name="+created.Name)
	return created, nil
}

func (s *Service) getOwnedCustomer(ctx context.Context, actor domain.Actor, id int64) (*domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.StoreID != actor.StoreID {
		return nil, store.ErrForbidden
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.getOwnedCustomer(ctx, actor, id)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (*domain.Customer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.getOwnedCustomer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalid
	}

	updated := *existing
	updated.Name = req.Name
	updated.Phone = strings.TrimSpace(req.Phone)
	updated.Email = strings.TrimSpace(req.Email)
	updated.Address = strings.TrimSpace(req.Address)

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor.StoreID, "customer_update", "customer", fmt.Sprintf("%d", saved.ID), "")
	return saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getOwnedCustomer(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor.StoreID, "customer_delete", "customer", fmt.Sprintf("%d", id), "")
	return nil
}

// --- bills ---

var supportedPaymentMethods = map[string]bool{
	"cash":     true,
	"card":     true,
	"transfer": true,
	"qris":     true,
}

func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (*domain.Bill, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if !supportedPaymentMethods[req.PaymentMethod] {
		return nil, store.ErrInvalid
	}

	taxCents := int64(0)
	if strings.TrimSpace(req.Tax) != "" {
		taxCents, err = domain.ParseAmount(req.Tax)
		if err != nil {
			return nil, store.ErrInvalid
		}
	}
	discountCents := int64(0)
	if strings.TrimSpace(req.Discount) != "" {
		discountCents, err = domain.ParseAmount(req.Discount)
		if err != nil {
			return nil, store.ErrInvalid
		}
	}

	var customer *domain.Customer
	if req.CustomerID != nil {
		customer, err = s.getOwnedCustomer(ctx, actor, *req.CustomerID)
		if err != nil {
			if errors.Is(err, store.ErrForbidden) {
				// Same treatment as foreign product ids below: a cart must
				// not reveal which ids exist in other stores.
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	items := make([]domain.BillItem, 0, len(req.Items))
	subtotal := int64(0)
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, store.ErrInvalid
		}
		product, err := s.getOwnedProduct(ctx, actor, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrForbidden) {
				// Another tenant's product id in a cart is indistinguishable
				// from a nonexistent product.
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if !product.Active {
			return nil, store.ErrInvalid
		}

		unitPrice := product.PriceCents
		if strings.TrimSpace(line.Price) != "" {
			unitPrice, err = domain.ParseAmount(line.Price)
			if err != nil {
				return nil, store.ErrInvalid
			}
		}
		lineTotal := unitPrice * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, domain.BillItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: unitPrice,
			TotalCents:     lineTotal,
		})
	}

	if discountCents > subtotal+taxCents {
		return nil, store.ErrInvalid
	}
	total := subtotal + taxCents - discountCents

	bill := domain.Bill{
		Number:        refno.Bill(time.Now().UTC()),
		StoreID:       actor.StoreID,
		CustomerID:    req.CustomerID,
		UserID:        actor.UserID,
		SubtotalCents: subtotal,
		TaxCents:      taxCents,
		DiscountCents: discountCents,
		TotalCents:    total,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.BillStatusPaid,
		Items:         items,
	}

	created, err := s.repo.CreateBill(ctx, bill, domain.ActivityLog{
		StoreID:    actor.StoreID,
		Username:   actor.Username,
		Action:     "bill_create",
		EntityType: "bill",
		EntityID:   bill.Number,
		Detail:     fmt.Sprintf("items=%d,total=%d,payment=%s", len(items), total, req.PaymentMethod),
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, actor.StoreID)

	if customer != nil && strings.TrimSpace(customer.Phone) != "" {
		go s.sendReceiptSMS(actor, *created, customer.Phone)
	}

	created.Normalize()
	return created, nil
}

// sendReceiptSMS runs on its own goroutine after the bill transaction has
// committed. The outcome lands in the activity log; delivery never affects
// the bill.
func (s *Service) sendReceiptSMS(actor domain.Actor, bill domain.Bill, phone string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	message := fmt.Sprintf("Thank you for your purchase at %s. Bill %s, total %s.",
		actor.StoreCode, bill.Number, domain.FormatCents(bill.TotalCents))

	ref, err := s.notifier.Send(ctx, phone, message)
	entry := domain.ActivityLog{
		StoreID:    bill.StoreID,
		Username:   actor.Username,
		Action:     "bill_sms_sent",
		EntityType: "bill",
		EntityID:   fmt.Sprintf("%d", bill.ID),
		Detail:     "ref=" + ref,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		s.logger.Warn("receipt sms failed",
			zap.String("bill", bill.Number),
			zap.Error(err),
		)
		entry.Action = "bill_sms_failed"
		entry.Detail = err.Error()
	}
	if logErr := s.repo.CreateActivityLog(ctx, entry); logErr != nil {
		s.logger.Warn("sms activity log write failed", zap.String("bill", bill.Number), zap.Error(logErr))
	}
}

func (s *Service) ListBills(ctx context.Context, limit int) ([]domain.Bill, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.ListBills(ctx, actor.StoreID, limit)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Normalize()
	}
	return bills, nil
}

func (s *Service) getOwnedBill(ctx context.Context, actor domain.Actor, id int64) (*domain.Bill, error) {
	bill, err := s.repo.GetBillByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.StoreID != actor.StoreID {
		return nil, store.ErrForbidden
	}
	return bill, nil
}

func (s *Service) GetBill(ctx context.Context, id int64) (*domain.Bill, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	bill, err := s.getOwnedBill(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	bill.Normalize()
	return bill, nil
}

func (s *Service) UpdateBillStatus(ctx context.Context, id int64, status string) (*domain.Bill, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	switch status {
	case domain.BillStatusPaid, domain.BillStatusPending, domain.BillStatusCancelled:
	default:
		return nil, store.ErrInvalid
	}
	if _, err := s.getOwnedBill(ctx, actor, id); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateBillStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor.StoreID, "bill_status_update", "bill", fmt.Sprintf("%d", id), "status="+status)
	s.invalidateStats(ctx, actor.StoreID)

	updated.Normalize()
	return updated, nil
}

// ResendBillSMS re-sends the receipt synchronously so the caller sees the
// outcome.
func (s *Service) ResendBillSMS(ctx context.Context, id int64) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	bill, err := s.getOwnedBill(ctx, actor, id)
	if err != nil {
		return err
	}
	if bill.CustomerID == nil {
		return store.ErrInvalid
	}
	customer, err := s.getOwnedCustomer(ctx, actor, *bill.CustomerID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(customer.Phone) == "" {
		return store.ErrInvalid
	}

	message := fmt.Sprintf("Thank you for your purchase at %s. Bill %s, total %s.",
		actor.StoreCode, bill.Number, domain.FormatCents(bill.TotalCents))
	ref, err := s.notifier.Send(ctx, customer.Phone, message)
	if err != nil {
		s.logAudit(ctx, actor.StoreID, "bill_sms_failed", "bill", fmt.Sprintf("%d", bill.ID), err.Error())
		return fmt.Errorf("sms delivery failed: %w", err)
	}
	s.logAudit(ctx, actor.StoreID, "bill_sms_sent", "bill", fmt.Sprintf("%d", bill.ID), "ref="+ref)
	return nil
}

// BillPrintData bundles everything the invoice renderer needs.
type BillPrintData struct {
	Bill     domain.Bill
	Store    domain.Store
	Customer *domain.Customer
	Template domain.InvoiceTemplate
}

func (s *Service) GetBillPrintData(ctx context.Context, id int64) (*BillPrintData, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	bill, err := s.getOwnedBill(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	bill.Normalize()

	st, err := s.repo.GetStoreByID(ctx, actor.StoreID)
	if err != nil {
		return nil, err
	}

	var customer *domain.Customer
	if bill.CustomerID != nil {
		customer, err = s.getOwnedCustomer(ctx, actor, *bill.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	template, err := s.repo.GetDefaultInvoiceTemplate(ctx, actor.StoreID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		template = &domain.InvoiceTemplate{
			StoreID:     actor.StoreID,
			Name:        "Classic",
			AccentColor: "#1f2937",
			PaperSize:   "thermal-80",
			ShowBarcode: true,
		}
	}

	return &BillPrintData{Bill: *bill, Store: *st, Customer: customer, Template: *template}, nil
}

// --- inventory ---

func (s *Service) ListInventoryTransactions(ctx context.Context, limit int) ([]domain.InventoryTransaction, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventoryTransactions(ctx, actor.StoreID, limit)
}

func (s *Service) AdjustStock(ctx context.Context, req domain.InventoryAdjustmentRequest) (*domain.InventoryTransaction, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		return nil, store.ErrInvalid
	}
	switch req.Reason {
	case domain.InventoryReasonPurchase, domain.InventoryReasonAdjustment:
	default:
		// Sales only enter through bills.
		return nil, store.ErrInvalid
	}
	if _, err := s.getOwnedProduct(ctx, actor, req.ProductID); err != nil {
		return nil, err
	}

	created, err := s.repo.AdjustStock(ctx, domain.InventoryTransaction{
		StoreID:   actor.StoreID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor.StoreID, "stock_adjust", "product", fmt.Sprintf("%d", req.ProductID),
		fmt.Sprintf("qty=%d,reason=%s", req.Quantity, req.Reason))
	s.invalidateStats(ctx, actor.StoreID)

	return created, nil
}

// --- invoice templates ---

func (s *Service) ListInvoiceTemplates(ctx context.Context) ([]domain.InvoiceTemplate, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInvoiceTemplates(ctx, actor.StoreID)
}

func normalizeTemplateRequest(req *domain.InvoiceTemplateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return store.ErrInvalid
	}
	if req.AccentColor == "" {
		req.AccentColor = "#1f2937"
	}
	if req.PaperSize == "" {
		req.PaperSize = "thermal-80"
	}
	switch req.PaperSize {
	case "thermal-58", "thermal-80", "a4":
	default:
		return store.ErrInvalid
	}
	return nil
}

func (s *Service) CreateInvoiceTemplate(ctx context.Context, req domain.InvoiceTemplateRequest) (*domain.InvoiceTemplate, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := normalizeTemplateRequest(&req); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateInvoiceTemplate(ctx, domain.InvoiceTemplate{
		StoreID:     actor.StoreID,
		Name:        req.Name,
		HeaderText:  strings.TrimSpace(req.HeaderText),
		FooterText:  strings.TrimSpace(req.FooterText),
		AccentColor: req.AccentColor,
		PaperSize:   req.PaperSize,
		ShowBarcode: req.ShowBarcode,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor.StoreID, "template_create", "invoice_template", fmt.Sprintf("%d", created.ID), "name="+created.Name)
	return created, nil
}

func (s *Service) getOwnedTemplate(ctx context.Context, actor domain.Actor, id int64) (*domain.InvoiceTemplate, error) {
	template, err := s.repo.GetInvoiceTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.StoreID != actor.StoreID {
		return nil, store.ErrForbidden
	}
	return template, nil
}

func (s *Service) UpdateInvoiceTemplate(ctx context.Context, id int64, req domain.InvoiceTemplateRequest) (*domain.InvoiceTemplate, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.getOwnedTemplate(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeTemplateRequest(&req); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = req.Name
	updated.HeaderText = strings.TrimSpace(req.HeaderText)
	updated.FooterText = strings.TrimSpace(req.FooterText)
	updated.AccentColor = req.AccentColor
	updated.PaperSize = req.PaperSize
	updated.ShowBarcode = req.ShowBarcode

	saved, err := s.repo.UpdateInvoiceTemplate(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor.StoreID, "template_update", "invoice_template", fmt.Sprintf("%d", saved.ID), "")
	return saved, nil
}

func (s *Service) SetDefaultInvoiceTemplate(ctx context.Context, id int64) (*domain.InvoiceTemplate, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.getOwnedTemplate(ctx, actor, id); err != nil {
		return nil, err
	}

	saved, err := s.repo.SetDefaultInvoiceTemplate(ctx, actor.StoreID, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, actor.StoreID, "template_set_default", "invoice_template", fmt.Sprintf("%d", id), "")
	return saved, nil
}

func (s *Service) DeleteInvoiceTemplate(ctx context.Context, id int64) error {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getOwnedTemplate(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteInvoiceTemplate(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, actor.StoreID, "template_delete", "invoice_template", fmt.Sprintf("%d", id), "")
	return nil
}

// --- activity logs ---

func (s *Service) ListActivityLogs(ctx context.Context, filter store.ActivityFilter) ([]domain.ActivityLog, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListActivityLogs(ctx, actor.StoreID, filter)
}

// --- dashboard ---

func statsCacheKey(storeID int64) string {
	return fmt.Sprintf("tokobill:stats:%d", storeID)
}

func (s *Service) invalidateStats(ctx context.Context, storeID int64) {
	if err := s.stats.Delete(ctx, statsCacheKey(storeID)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Int64("store_id", storeID), zap.Error(err))
	}
}

// DashboardStats serves from the cache when possible. Cached values were
// normalized before being stored and must not be normalized again: the cents
// fields are not part of the JSON payload.
func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	key := statsCacheKey(actor.StoreID)

	cached, hit, err := s.stats.Get(ctx, key)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.Int64("store_id", actor.StoreID), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	stats, err := s.repo.GetDashboardStats(ctx, actor.StoreID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	stats.Normalize()

	if err := s.stats.Set(ctx, key, &stats, s.statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.Int64("store_id", actor.StoreID), zap.Error(err))
	}
	return &stats, nil
}

// --- reports ---

func (s *Service) SalesReport(ctx context.Context, fromStr string, toStr string) (*domain.SalesReport, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.Add(24 * time.Hour)

	if strings.TrimSpace(fromStr) != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, store.ErrInvalid
		}
		from = parsed.UTC()
	}
	if strings.TrimSpace(toStr) != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, store.ErrInvalid
		}
		// Inclusive end date.
		to = parsed.UTC().Add(24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, store.ErrInvalid
	}

	report, err := s.repo.GetSalesReport(ctx, actor.StoreID, from, to)
	if err != nil {
		return nil, err
	}
	report.Normalize()
	return &report, nil
}
