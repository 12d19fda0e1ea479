package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokobill/backend/internal/domain"
	"tokobill/backend/internal/refno"
	"tokobill/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// --- stores ---

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stores (name, code, address, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, st.Name, st.Code, st.Address, st.Phone, st.CreatedAt).Scan(&st.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := st
	return &created, nil
}

func (s *Store) GetStoreByCode(ctx context.Context, code string) (*domain.Store, error) {
	return s.getStore(ctx, `WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Store) GetStoreByID(ctx context.Context, id int64) (*domain.Store, error) {
	return s.getStore(ctx, `WHERE id = $1`, id)
}

func (s *Store) getStore(ctx context.Context, clause string, arg any) (*domain.Store, error) {
	var st domain.Store
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, code, COALESCE(address,''), COALESCE(phone,''), created_at
		FROM stores `+clause,
		arg).Scan(&st.ID, &st.Name, &st.Code, &st.Address, &st.Phone, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (store_id, username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, u.StoreID, u.Username, u.Password, u.Role, u.Active, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := u
	return &created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, storeID int64, username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, username, password, role, active, created_at
		FROM users
		WHERE store_id = $1 AND username = $2
	`, storeID, strings.ToLower(strings.TrimSpace(username))).Scan(
		&u.ID, &u.StoreID, &u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, username, password, role, active, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.StoreID, &u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// --- sessions ---

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	if sess.ID == "" {
		return store.ErrInvalid
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, store_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sess.ID, sess.UserID, sess.StoreID, sess.ExpiresAt, sess.CreatedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, store_id, expires_at, created_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.StoreID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- products ---

const productColumns = `id, store_id, name, COALESCE(barcode,''), COALESCE(category,''),
	price_cents, cost_cents, stock, min_stock_level, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Barcode, &p.Category,
		&p.PriceCents, &p.CostCents, &p.Stock, &p.MinStockLevel, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) listProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID int64) ([]domain.Product, error) {
	return s.listProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1
		ORDER BY id
	`, storeID)
}

func (s *Store) ListLowStockProducts(ctx context.Context, storeID int64) ([]domain.Product, error) {
	return s.listProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1 AND active = true AND stock <= min_stock_level
		ORDER BY id
	`, storeID)
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (store_id, name, barcode, category, price_cents, cost_cents,
			stock, min_stock_level, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, p.StoreID, p.Name, nullIfEmpty(p.Barcode), nullIfEmpty(p.Category), p.PriceCents, p.CostCents,
		p.Stock, p.MinStockLevel, p.Active, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := p
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, price_cents = $5, cost_cents = $6,
			min_stock_level = $7, active = $8, updated_at = $9
		WHERE id = $1
	`, p.ID, p.Name, nullIfEmpty(p.Barcode), nullIfEmpty(p.Category), p.PriceCents, p.CostCents,
		p.MinStockLevel, p.Active, p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context, storeID int64) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), created_at
		FROM customers
		WHERE store_id = $1
		ORDER BY id
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (store_id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, c.StoreID, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), nullIfEmpty(c.Address), c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	created := c
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5
		WHERE id = $1
	`, c.ID, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), nullIfEmpty(c.Address))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, c.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- bills ---

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, activity domain.ActivityLog) (*domain.Bill, error) {
	if len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}

	now := time.Now().UTC()
	if bill.Number == "" {
		bill.Number = refno.Bill(now)
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	if bill.Status == "" {
		bill.Status = domain.BillStatusPaid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock and check every product row before writing anything.
	for _, item := range bill.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalid
		}
		var stock int
		var active bool
		err := tx.QueryRowContext(ctx, `
			SELECT stock, active
			FROM products
			WHERE id = $1 AND store_id = $2
			FOR UPDATE
		`, item.ProductID, bill.StoreID).Scan(&stock, &active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if !active {
			return nil, store.ErrInvalid
		}
		if stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bills (store_id, number, customer_id, user_id, subtotal_cents, tax_cents,
			discount_cents, total_cents, payment_method, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, bill.StoreID, bill.Number, nullInt64(bill.CustomerID), bill.UserID, bill.SubtotalCents,
		bill.TaxCents, bill.DiscountCents, bill.TotalCents, bill.PaymentMethod, bill.Status,
		bill.CreatedAt).Scan(&bill.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		item.BillID = bill.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO bill_items (bill_id, product_id, product_name, quantity, unit_price_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, bill.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPriceCents, item.TotalCents).Scan(&item.ID)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = $2
			WHERE id = $3
		`, item.Quantity, now, item.ProductID)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_transactions (store_id, product_id, quantity, reason, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, bill.StoreID, item.ProductID, -item.Quantity, domain.InventoryReasonSale, bill.Number, now)
		if err != nil {
			return nil, err
		}
	}

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_logs (store_id, username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, bill.StoreID, activity.Username, activity.Action, activity.EntityType, activity.EntityID, activity.Detail, activity.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := bill
	return &created, nil
}

const billColumns = `id, store_id, number, customer_id, user_id, subtotal_cents, tax_cents,
	discount_cents, total_cents, payment_method, status, created_at`

func scanBill(row interface{ Scan(...any) error }) (domain.Bill, error) {
	var b domain.Bill
	var customerID sql.NullInt64
	err := row.Scan(&b.ID, &b.StoreID, &b.Number, &customerID, &b.UserID, &b.SubtotalCents,
		&b.TaxCents, &b.DiscountCents, &b.TotalCents, &b.PaymentMethod, &b.Status, &b.CreatedAt)
	if err != nil {
		return b, err
	}
	if customerID.Valid {
		id := customerID.Int64
		b.CustomerID = &id
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func (s *Store) ListBills(ctx context.Context, storeID int64, limit int) ([]domain.Bill, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE store_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, limit)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}

func (s *Store) GetBillByID(ctx context.Context, id int64) (*domain.Bill, error) {
	b, err := scanBill(s.db.QueryRowContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, product_id, product_name, quantity, unit_price_cents, total_cents
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.BillItem, 0, 8)
	for rows.Next() {
		var item domain.BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	b.Items = items
	return &b, nil
}

func (s *Store) UpdateBillStatus(ctx context.Context, id int64, status string) (*domain.Bill, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bills
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetBillByID(ctx, id)
}

// --- inventory ---

func (s *Store) ListInventoryTransactions(ctx context.Context, storeID int64, limit int) ([]domain.InventoryTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, product_id, quantity, reason, COALESCE(note,''), created_at
		FROM inventory_transactions
		WHERE store_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryTransaction, 0, limit)
	for rows.Next() {
		var entry domain.InventoryTransaction
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ProductID, &entry.Quantity,
			&entry.Reason, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AdjustStock(ctx context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1 AND store_id = $2
		FOR UPDATE
	`, entry.ProductID, entry.StoreID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if stock+entry.Quantity < 0 {
		return nil, store.ErrInsufficientStock
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $1, updated_at = $2
		WHERE id = $3
	`, entry.Quantity, now, entry.ProductID)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO inventory_transactions (store_id, product_id, quantity, reason, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, entry.StoreID, entry.ProductID, entry.Quantity, entry.Reason, nullIfEmpty(entry.Note), entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

// --- invoice templates ---

const templateColumns = `id, store_id, name, COALESCE(header_text,''), COALESCE(footer_text,''),
	accent_color, paper_size, show_barcode, is_default, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (domain.InvoiceTemplate, error) {
	var t domain.InvoiceTemplate
	err := row.Scan(&t.ID, &t.StoreID, &t.Name, &t.HeaderText, &t.FooterText,
		&t.AccentColor, &t.PaperSize, &t.ShowBarcode, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *Store) ListInvoiceTemplates(ctx context.Context, storeID int64) ([]domain.InvoiceTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM invoice_templates
		WHERE store_id = $1
		ORDER BY id
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.InvoiceTemplate, 0, 4)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

func (s *Store) CreateInvoiceTemplate(ctx context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error) {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// First template for a store becomes the default.
	var existing int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invoice_templates WHERE store_id = $1
	`, t.StoreID).Scan(&existing)
	if err != nil {
		return nil, err
	}
	t.IsDefault = existing == 0

	err = tx.QueryRowContext(ctx, `
		INSERT INTO invoice_templates (store_id, name, header_text, footer_text, accent_color,
			paper_size, show_barcode, is_default, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, t.StoreID, t.Name, nullIfEmpty(t.HeaderText), nullIfEmpty(t.FooterText), t.AccentColor,
		t.PaperSize, t.ShowBarcode, t.IsDefault, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := t
	return &created, nil
}

func (s *Store) GetInvoiceTemplateByID(ctx context.Context, id int64) (*domain.InvoiceTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM invoice_templates
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) UpdateInvoiceTemplate(ctx context.Context, t domain.InvoiceTemplate) (*domain.InvoiceTemplate, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoice_templates
		SET name = $2, header_text = $3, footer_text = $4, accent_color = $5,
			paper_size = $6, show_barcode = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Name, nullIfEmpty(t.HeaderText), nullIfEmpty(t.FooterText), t.AccentColor,
		t.PaperSize, t.ShowBarcode, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetInvoiceTemplateByID(ctx, t.ID)
}

func (s *Store) SetDefaultInvoiceTemplate(ctx context.Context, storeID int64, templateID int64) (*domain.InvoiceTemplate, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE invoice_templates
		SET is_default = true, updated_at = $3
		WHERE id = $1 AND store_id = $2
	`, templateID, storeID, now)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE invoice_templates
		SET is_default = false, updated_at = $3
		WHERE store_id = $1 AND id <> $2 AND is_default = true
	`, storeID, templateID, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetInvoiceTemplateByID(ctx, templateID)
}

func (s *Store) DeleteInvoiceTemplate(ctx context.Context, id int64) error {
	var isDefault bool
	err := s.db.QueryRowContext(ctx, `
		SELECT is_default FROM invoice_templates WHERE id = $1
	`, id).Scan(&isDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if isDefault {
		return store.ErrDefaultTemplate
	}

	// The default check and the delete race only against set-default, which
	// never clears the last default, so a plain guarded delete is enough.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invoice_templates WHERE id = $1 AND is_default = false
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrDefaultTemplate
	}
	return nil
}

func (s *Store) GetDefaultInvoiceTemplate(ctx context.Context, storeID int64) (*domain.InvoiceTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM invoice_templates
		WHERE store_id = $1 AND is_default = true
	`, storeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// --- activity logs ---

func (s *Store) CreateActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (store_id, username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.StoreID, entry.Username, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListActivityLogs(ctx context.Context, storeID int64, filter store.ActivityFilter) ([]domain.ActivityLog, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	from := filter.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, username, action, entity_type, entity_id, COALESCE(detail,''), created_at
		FROM activity_logs
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ActivityLog, 0, limit)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.Username, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- aggregates ---

func (s *Store) GetDashboardStats(ctx context.Context, storeID int64, now time.Time) (domain.DashboardStats, error) {
	stats := domain.DashboardStats{GeneratedAt: now, TopProducts: []domain.TopProduct{}}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM bills
		WHERE store_id = $1
			AND created_at >= $2
			AND status <> $3
	`, storeID, dayStart, domain.BillStatusCancelled).Scan(&stats.TodayBills, &stats.TodaySalesCents)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint
		FROM products
		WHERE store_id = $1 AND active = true AND stock <= min_stock_level
	`, storeID).Scan(&stats.LowStockCount)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint FROM customers WHERE store_id = $1
	`, storeID).Scan(&stats.CustomerCount)
	if err != nil {
		return stats, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bi.product_id, bi.product_name,
			COALESCE(SUM(bi.quantity),0)::bigint,
			COALESCE(SUM(bi.total_cents),0)::bigint
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		WHERE b.store_id = $1
			AND b.created_at >= $2
			AND b.status <> $3
		GROUP BY bi.product_id, bi.product_name
		ORDER BY 3 DESC, bi.product_id
		LIMIT 5
	`, storeID, now.AddDate(0, 0, -30), domain.BillStatusCancelled)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var tp domain.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &tp.SalesCents); err != nil {
			return stats, err
		}
		stats.TopProducts = append(stats.TopProducts, tp)
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	return stats, nil
}

func (s *Store) GetSalesReport(ctx context.Context, storeID int64, from time.Time, to time.Time) (domain.SalesReport, error) {
	report := domain.SalesReport{
		StoreID:     storeID,
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		ByDay:       []domain.SalesReportDay{},
		TopProducts: []domain.TopProduct{},
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint, COALESCE(SUM(tax_cents),0)::bigint
		FROM bills
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND status <> $4
	`, storeID, from, to, domain.BillStatusCancelled).Scan(&report.Bills, &report.GrossCents, &report.TaxCents)
	if err != nil {
		return report, err
	}

	dayRows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM bills
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND status <> $4
		GROUP BY day
		ORDER BY day
	`, storeID, from, to, domain.BillStatusCancelled)
	if err != nil {
		return report, err
	}
	for dayRows.Next() {
		var day domain.SalesReportDay
		if err := dayRows.Scan(&day.Date, &day.Bills, &day.TotalCents); err != nil {
			_ = dayRows.Close()
			return report, err
		}
		report.ByDay = append(report.ByDay, day)
	}
	if err := dayRows.Err(); err != nil {
		_ = dayRows.Close()
		return report, err
	}
	_ = dayRows.Close()

	topRows, err := s.db.QueryContext(ctx, `
		SELECT bi.product_id, bi.product_name,
			COALESCE(SUM(bi.quantity),0)::bigint,
			COALESCE(SUM(bi.total_cents),0)::bigint
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		WHERE b.store_id = $1
			AND b.created_at >= $2
			AND b.created_at < $3
			AND b.status <> $4
		GROUP BY bi.product_id, bi.product_name
		ORDER BY 3 DESC, bi.product_id
		LIMIT 10
	`, storeID, from, to, domain.BillStatusCancelled)
	if err != nil {
		return report, err
	}
	defer topRows.Close()

	for topRows.Next() {
		var tp domain.TopProduct
		if err := topRows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &tp.SalesCents); err != nil {
			return report, err
		}
		report.TopProducts = append(report.TopProducts, tp)
	}
	if err := topRows.Err(); err != nil {
		return report, err
	}

	return report, nil
}
