package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

type Store struct {
	db    *sql.DB
	types *pgtype.Map
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, types: pgtype.NewMap()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const transactionColumns = `id, date, description, amount, type, category, payment_method,
	customer_id, customer_name, product_ids, product_names, status, notes,
	refundable, related_transaction_id`

func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = $1
		ORDER BY date DESC, created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var (
			t          domain.Transaction
			txType     string
			status     string
			customerID sql.NullString
			related    sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.Date, &t.Description, &t.Amount, &txType, &t.Category, &t.PaymentMethod,
			&customerID, &t.CustomerName, s.types.SQLScanner(&t.ProductIDs), s.types.SQLScanner(&t.ProductNames),
			&status, &t.Notes, &t.Refundable, &related,
		); err != nil {
			return nil, err
		}
		t.Type = domain.TransactionType(txType)
		t.Status = domain.TransactionStatus(status)
		t.CustomerID = customerID.String
		t.RelatedTransactionID = related.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func transactionArgs(ownerID string, t domain.Transaction) []any {
	return []any{
		t.ID, ownerID, t.Date, t.Description, t.Amount, string(t.Type), t.Category, t.PaymentMethod,
		nullIfEmpty(t.CustomerID), t.CustomerName, textArray(t.ProductIDs), textArray(t.ProductNames),
		string(t.Status), t.Notes, t.Refundable, nullIfEmpty(t.RelatedTransactionID),
	}
}

func (s *Store) InsertTransaction(ctx context.Context, ownerID string, t domain.Transaction) error {
	if err := store.CheckScope(ownerID, t.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, date, description, amount, type, category, payment_method,
			customer_id, customer_name, product_ids, product_names, status, notes,
			refundable, related_transaction_id, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
	`, transactionArgs(ownerID, t)...)
	return insertError(err)
}

func (s *Store) UpdateTransaction(ctx context.Context, ownerID string, id string, t domain.Transaction) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	t.ID = id
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = $3, description = $4, amount = $5, type = $6, category = $7, payment_method = $8,
			customer_id = $9, customer_name = $10, product_ids = $11, product_names = $12,
			status = $13, notes = $14, refundable = $15, related_transaction_id = $16, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, transactionArgs(ownerID, t)...)
	return affectedOne(res, err)
}

func (s *Store) UpsertTransaction(ctx context.Context, ownerID string, t domain.Transaction) error {
	if err := store.CheckScope(ownerID, t.ID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, date, description, amount, type, category, payment_method,
			customer_id, customer_name, product_ids, product_names, status, notes,
			refundable, related_transaction_id, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date, description = EXCLUDED.description, amount = EXCLUDED.amount,
			type = EXCLUDED.type, category = EXCLUDED.category, payment_method = EXCLUDED.payment_method,
			customer_id = EXCLUDED.customer_id, customer_name = EXCLUDED.customer_name,
			product_ids = EXCLUDED.product_ids, product_names = EXCLUDED.product_names,
			status = EXCLUDED.status, notes = EXCLUDED.notes, refundable = EXCLUDED.refundable,
			related_transaction_id = EXCLUDED.related_transaction_id, updated_at = now()
		WHERE transactions.owner_id = EXCLUDED.owner_id
	`, transactionArgs(ownerID, t)...)
	return affectedOne(res, err)
}

func (s *Store) DeleteTransaction(ctx context.Context, ownerID string, id string) error {
	return s.deleteRow(ctx, "transactions", ownerID, id)
}

func (s *Store) DeleteAllTransactions(ctx context.Context, ownerID string) error {
	return s.deleteAll(ctx, "transactions", ownerID)
}

const customerColumns = `id, name, email, phone, address, document, join_date, total_purchases,
	last_purchase, status, category, notes`

func (s *Store) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE owner_id = $1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var (
			c        domain.Customer
			status   string
			category string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Document, &c.JoinDate,
			&c.TotalPurchases, &c.LastPurchase, &status, &category, &c.Notes); err != nil {
			return nil, err
		}
		c.Status = domain.CustomerStatus(status)
		c.Category = domain.CustomerCategory(category)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func customerArgs(ownerID string, c domain.Customer) []any {
	return []any{
		c.ID, ownerID, c.Name, c.Email, c.Phone, c.Address, c.Document, c.JoinDate,
		c.TotalPurchases, c.LastPurchase, string(c.Status), string(c.Category), c.Notes,
	}
}

func (s *Store) InsertCustomer(ctx context.Context, ownerID string, c domain.Customer) error {
	if err := store.CheckScope(ownerID, c.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (
			id, owner_id, name, email, phone, address, document, join_date, total_purchases,
			last_purchase, status, category, notes, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
	`, customerArgs(ownerID, c)...)
	return insertError(err)
}

func (s *Store) UpdateCustomer(ctx context.Context, ownerID string, id string, c domain.Customer) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	c.ID = id
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $3, email = $4, phone = $5, address = $6, document = $7, join_date = $8,
			total_purchases = $9, last_purchase = $10, status = $11, category = $12, notes = $13,
			updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, customerArgs(ownerID, c)...)
	return affectedOne(res, err)
}

func (s *Store) UpsertCustomer(ctx context.Context, ownerID string, c domain.Customer) error {
	if err := store.CheckScope(ownerID, c.ID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (
			id, owner_id, name, email, phone, address, document, join_date, total_purchases,
			last_purchase, status, category, notes, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			address = EXCLUDED.address, document = EXCLUDED.document, join_date = EXCLUDED.join_date,
			total_purchases = EXCLUDED.total_purchases, last_purchase = EXCLUDED.last_purchase,
			status = EXCLUDED.status, category = EXCLUDED.category, notes = EXCLUDED.notes,
			updated_at = now()
		WHERE customers.owner_id = EXCLUDED.owner_id
	`, customerArgs(ownerID, c)...)
	return affectedOne(res, err)
}

func (s *Store) DeleteCustomer(ctx context.Context, ownerID string, id string) error {
	return s.deleteRow(ctx, "customers", ownerID, id)
}

func (s *Store) DeleteAllCustomers(ctx context.Context, ownerID string) error {
	return s.deleteAll(ctx, "customers", ownerID)
}

const productColumns = `id, name, description, price, cost, stock, category, minimum_stock, supplier_id, barcode`

func (s *Store) ListProducts(ctx context.Context, ownerID string) ([]domain.Product, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE owner_id = $1
		ORDER BY category, name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0, 128)
	for rows.Next() {
		var (
			p          domain.Product
			cost       decimal.NullDecimal
			minimum    sql.NullInt64
			supplierID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &cost, &p.Stock, &p.Category,
			&minimum, &supplierID, &p.Barcode); err != nil {
			return nil, err
		}
		if cost.Valid {
			value := cost.Decimal
			p.Cost = &value
		}
		if minimum.Valid {
			value := int(minimum.Int64)
			p.MinimumStock = &value
		}
		p.SupplierID = supplierID.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func productArgs(ownerID string, p domain.Product) []any {
	var cost any
	if p.Cost != nil {
		cost = *p.Cost
	}
	var minimum any
	if p.MinimumStock != nil {
		minimum = *p.MinimumStock
	}
	return []any{
		p.ID, ownerID, p.Name, p.Description, p.Price, cost, p.Stock, p.Category,
		minimum, nullIfEmpty(p.SupplierID), p.Barcode,
	}
}

func (s *Store) InsertProduct(ctx context.Context, ownerID string, p domain.Product) error {
	if err := store.CheckScope(ownerID, p.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, owner_id, name, description, price, cost, stock, category, minimum_stock,
			supplier_id, barcode, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
	`, productArgs(ownerID, p)...)
	return insertError(err)
}

func (s *Store) UpdateProduct(ctx context.Context, ownerID string, id string, p domain.Product) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	p.ID = id
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, description = $4, price = $5, cost = $6, stock = $7, category = $8,
			minimum_stock = $9, supplier_id = $10, barcode = $11, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, productArgs(ownerID, p)...)
	return affectedOne(res, err)
}

func (s *Store) UpsertProduct(ctx context.Context, ownerID string, p domain.Product) error {
	if err := store.CheckScope(ownerID, p.ID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, owner_id, name, description, price, cost, stock, category, minimum_stock,
			supplier_id, barcode, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			cost = EXCLUDED.cost, stock = EXCLUDED.stock, category = EXCLUDED.category,
			minimum_stock = EXCLUDED.minimum_stock, supplier_id = EXCLUDED.supplier_id,
			barcode = EXCLUDED.barcode, updated_at = now()
		WHERE products.owner_id = EXCLUDED.owner_id
	`, productArgs(ownerID, p)...)
	return affectedOne(res, err)
}

func (s *Store) DeleteProduct(ctx context.Context, ownerID string, id string) error {
	return s.deleteRow(ctx, "products", ownerID, id)
}

func (s *Store) DeleteAllProducts(ctx context.Context, ownerID string) error {
	return s.deleteAll(ctx, "products", ownerID)
}

const supplierColumns = `id, name, contact_name, email, phone, address, document, category, product_ids`

func (s *Store) ListSuppliers(ctx context.Context, ownerID string) ([]domain.Supplier, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE owner_id = $1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sp domain.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ContactName, &sp.Email, &sp.Phone, &sp.Address,
			&sp.Document, &sp.Category, s.types.SQLScanner(&sp.ProductIDs)); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func supplierArgs(ownerID string, sp domain.Supplier) []any {
	return []any{
		sp.ID, ownerID, sp.Name, sp.ContactName, sp.Email, sp.Phone, sp.Address, sp.Document,
		sp.Category, textArray(sp.ProductIDs),
	}
}

func (s *Store) InsertSupplier(ctx context.Context, ownerID string, sp domain.Supplier) error {
	if err := store.CheckScope(ownerID, sp.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (
			id, owner_id, name, contact_name, email, phone, address, document, category,
			product_ids, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
	`, supplierArgs(ownerID, sp)...)
	return insertError(err)
}

func (s *Store) UpdateSupplier(ctx context.Context, ownerID string, id string, sp domain.Supplier) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	sp.ID = id
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $3, contact_name = $4, email = $5, phone = $6, address = $7, document = $8,
			category = $9, product_ids = $10, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, supplierArgs(ownerID, sp)...)
	return affectedOne(res, err)
}

func (s *Store) UpsertSupplier(ctx context.Context, ownerID string, sp domain.Supplier) error {
	if err := store.CheckScope(ownerID, sp.ID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (
			id, owner_id, name, contact_name, email, phone, address, document, category,
			product_ids, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, contact_name = EXCLUDED.contact_name, email = EXCLUDED.email,
			phone = EXCLUDED.phone, address = EXCLUDED.address, document = EXCLUDED.document,
			category = EXCLUDED.category, product_ids = EXCLUDED.product_ids, updated_at = now()
		WHERE suppliers.owner_id = EXCLUDED.owner_id
	`, supplierArgs(ownerID, sp)...)
	return affectedOne(res, err)
}

func (s *Store) DeleteSupplier(ctx context.Context, ownerID string, id string) error {
	return s.deleteRow(ctx, "suppliers", ownerID, id)
}

func (s *Store) DeleteAllSuppliers(ctx context.Context, ownerID string) error {
	return s.deleteAll(ctx, "suppliers", ownerID)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, owner_id, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.OwnerID, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// table names below are package constants, never caller input.
func (s *Store) deleteRow(ctx context.Context, table string, ownerID string, id string) error {
	if err := store.CheckScope(ownerID, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, table), id, ownerID)
	return affectedOne(res, err)
}

func (s *Store) deleteAll(ctx context.Context, table string, ownerID string) error {
	if ownerID == "" {
		return store.ErrOwnerRequired
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, table), ownerID)
	return err
}

func affectedOne(res sql.Result, err error) error {
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

func insertError(err error) error {
	if isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
