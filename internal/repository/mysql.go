package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"lavka/internal/domain"
)

// SQLStore доступ к MySQL через sqlx; транзакция передаётся в контексте
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

type sqlTxKey struct{}

func txFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx)
	return tx, ok
}

// ext возвращает активную транзакцию из контекста либо сам пул
func (s *SQLStore) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.db
}

func noneAffectedIsNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundIfNoRows(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// SQLUsers поиск пользователей
type SQLUsers struct{ store *SQLStore }

func NewSQLUsers(store *SQLStore) *SQLUsers { return &SQLUsers{store: store} }

var _ UserRepository = (*SQLUsers)(nil)

func (r *SQLUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &u,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select user")
	}
	return &u, nil
}

// SQLAddresses поиск адресов
type SQLAddresses struct{ store *SQLStore }

func NewSQLAddresses(store *SQLStore) *SQLAddresses { return &SQLAddresses{store: store} }

var _ AddressRepository = (*SQLAddresses)(nil)

func (r *SQLAddresses) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	var a domain.Address
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &a,
		`SELECT id, user_id, street, city, zip_code, created_at, updated_at FROM addresses WHERE id = ?`, id)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select address")
	}
	return &a, nil
}

// SQLCategories репозиторий категорий
type SQLCategories struct{ store *SQLStore }

func NewSQLCategories(store *SQLStore) *SQLCategories { return &SQLCategories{store: store} }

var _ CategoryRepository = (*SQLCategories)(nil)

func (r *SQLCategories) Create(ctx context.Context, c *domain.Category) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO categories (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert category")
	}
	c.ID, err = res.LastInsertId()
	return errors.Wrap(err, "category id")
}

func (r *SQLCategories) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &c,
		`SELECT id, name, description, created_at, updated_at FROM categories WHERE id = ?`, id)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select category")
	}
	return &c, nil
}

func (r *SQLCategories) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &c,
		`SELECT id, name, description, created_at, updated_at FROM categories WHERE name = ?`, name)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select category by name")
	}
	return &c, nil
}

func (r *SQLCategories) List(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, 0)
	err := sqlx.SelectContext(ctx, r.store.ext(ctx), &out,
		`SELECT id, name, description, created_at, updated_at FROM categories ORDER BY id`)
	return out, errors.Wrap(err, "select categories")
}

func (r *SQLCategories) Update(ctx context.Context, c *domain.Category) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, c.UpdatedAt, c.ID)
	if err != nil {
		return errors.Wrap(err, "update category")
	}
	return noneAffectedIsNotFound(res)
}

func (r *SQLCategories) Delete(ctx context.Context, id int64) error {
	res, err := r.store.ext(ctx).ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete category")
	}
	return noneAffectedIsNotFound(res)
}

// SQLProducts репозиторий товаров
type SQLProducts struct{ store *SQLStore }

func NewSQLProducts(store *SQLStore) *SQLProducts { return &SQLProducts{store: store} }

var _ ProductRepository = (*SQLProducts)(nil)

const productColumns = `id, category_id, name, description, price, is_active, created_at, updated_at`

func (r *SQLProducts) Create(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO products (category_id, name, description, price, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.CategoryID, p.Name, p.Description, p.Price, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	p.ID, err = res.LastInsertId()
	return errors.Wrap(err, "product id")
}

func (r *SQLProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &p,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select product")
	}
	return &p, nil
}

func (r *SQLProducts) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &p,
		`SELECT `+productColumns+` FROM products WHERE name = ?`, name)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select product by name")
	}
	return &p, nil
}

func (r *SQLProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if f.NameSubstring != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+f.NameSubstring+"%")
	}
	if f.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.MinPrice != nil {
		query += ` AND price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query += ` AND price <= ?`
		args = append(args, *f.MaxPrice)
	}
	if f.OnlyActive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id`
	out := make([]domain.Product, 0)
	err := sqlx.SelectContext(ctx, r.store.ext(ctx), &out, query, args...)
	return out, errors.Wrap(err, "select products")
}

func (r *SQLProducts) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`UPDATE products SET category_id = ?, name = ?, description = ?, price = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		p.CategoryID, p.Name, p.Description, p.Price, p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	return noneAffectedIsNotFound(res)
}

func (r *SQLProducts) Delete(ctx context.Context, id int64) error {
	res, err := r.store.ext(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	return noneAffectedIsNotFound(res)
}

// SQLInventories складские остатки
type SQLInventories struct{ store *SQLStore }

func NewSQLInventories(store *SQLStore) *SQLInventories { return &SQLInventories{store: store} }

var _ InventoryRepository = (*SQLInventories)(nil)

const inventoryColumns = `id, product_id, quantity, min_quantity, max_quantity, is_active, created_at, updated_at`

func (r *SQLInventories) Create(ctx context.Context, inv *domain.Inventory) error {
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO inventories (product_id, quantity, min_quantity, max_quantity, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ProductID, inv.Quantity, inv.MinQuantity, inv.MaxQuantity, inv.IsActive, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert inventory")
	}
	inv.ID, err = res.LastInsertId()
	return errors.Wrap(err, "inventory id")
}

func (r *SQLInventories) GetByProductID(ctx context.Context, productID int64) (*domain.Inventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE product_id = ?`
	// Внутри транзакции строка блокируется на запись: два конкурентных
	// заказа на один товар сериализуются на чтении остатка
	if _, ok := txFrom(ctx); ok {
		query += ` FOR UPDATE`
	}
	var inv domain.Inventory
	if err := sqlx.GetContext(ctx, r.store.ext(ctx), &inv, query, productID); err != nil {
		return nil, notFoundIfNoRows(err, "select inventory")
	}
	return &inv, nil
}

func (r *SQLInventories) UpdateQuantity(ctx context.Context, productID int64, quantity int64) (*domain.Inventory, error) {
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`UPDATE inventories SET quantity = ?, updated_at = ? WHERE product_id = ?`,
		quantity, time.Now().UTC(), productID)
	if err != nil {
		return nil, errors.Wrap(err, "update inventory quantity")
	}
	if err := noneAffectedIsNotFound(res); err != nil {
		return nil, err
	}
	return r.GetByProductID(ctx, productID)
}

func (r *SQLInventories) DeleteByProductID(ctx context.Context, productID int64) error {
	res, err := r.store.ext(ctx).ExecContext(ctx, `DELETE FROM inventories WHERE product_id = ?`, productID)
	if err != nil {
		return errors.Wrap(err, "delete inventory")
	}
	return noneAffectedIsNotFound(res)
}

// SQLOrders репозиторий заказов
type SQLOrders struct{ store *SQLStore }

func NewSQLOrders(store *SQLStore) *SQLOrders { return &SQLOrders{store: store} }

var _ OrderRepository = (*SQLOrders)(nil)

const orderColumns = `id, user_id, address_id, status, total, created_at, updated_at`

func (r *SQLOrders) Create(ctx context.Context, o *domain.Order) error {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO orders (user_id, address_id, status, total, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.UserID, o.AddressID, o.Status, o.Total, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	o.ID, err = res.LastInsertId()
	return errors.Wrap(err, "order id")
}

func (r *SQLOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &o,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if err != nil {
		return nil, notFoundIfNoRows(err, "select order")
	}
	return &o, nil
}

func (r *SQLOrders) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`UPDATE orders SET address_id = ?, status = ?, total = ?, updated_at = ? WHERE id = ?`,
		o.AddressID, o.Status, o.Total, o.UpdatedAt, o.ID)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	return noneAffectedIsNotFound(res)
}

func (r *SQLOrders) Delete(ctx context.Context, id int64) error {
	res, err := r.store.ext(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	return noneAffectedIsNotFound(res)
}

func (r *SQLOrders) List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error) {
	return r.list(ctx, q, "", nil)
}

func (r *SQLOrders) ListByUser(ctx context.Context, userID uuid.UUID, q OrderQuery) ([]domain.Order, int64, error) {
	return r.list(ctx, q, ` AND user_id = ?`, []interface{}{userID})
}

func (r *SQLOrders) list(ctx context.Context, q OrderQuery, extraCond string, extraArgs []interface{}) ([]domain.Order, int64, error) {
	q = q.Normalize()
	where := ` WHERE 1=1` + extraCond
	args := append([]interface{}{}, extraArgs...)
	if q.Status != nil {
		where += ` AND status = ?`
		args = append(args, *q.Status)
	}
	if q.MinTotal != nil {
		where += ` AND total >= ?`
		args = append(args, *q.MinTotal)
	}
	if q.MaxTotal != nil {
		where += ` AND total <= ?`
		args = append(args, *q.MaxTotal)
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.store.ext(ctx), &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	// колонка и направление только из allow-list, подстановка безопасна
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s LIMIT ? OFFSET ?`,
		orderColumns, where, q.SortColumn(), q.SortOrder)
	args = append(args, q.Limit, q.Offset())
	out := make([]domain.Order, 0)
	if err := sqlx.SelectContext(ctx, r.store.ext(ctx), &out, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "select orders")
	}
	return out, total, nil
}

// SQLOrderItems позиции заказов
type SQLOrderItems struct{ store *SQLStore }

func NewSQLOrderItems(store *SQLStore) *SQLOrderItems { return &SQLOrderItems{store: store} }

var _ OrderItemRepository = (*SQLOrderItems)(nil)

func (r *SQLOrderItems) Create(ctx context.Context, item *domain.OrderItem) error {
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	res, err := r.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order item")
	}
	item.ID, err = res.LastInsertId()
	return errors.Wrap(err, "order item id")
}

func (r *SQLOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	out := make([]domain.OrderItem, 0)
	err := sqlx.SelectContext(ctx, r.store.ext(ctx), &out,
		`SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at, updated_at
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	return out, errors.Wrap(err, "select order items")
}

func (r *SQLOrderItems) DeleteByOrderID(ctx context.Context, orderID int64) error {
	_, err := r.store.ext(ctx).ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID)
	return errors.Wrap(err, "delete order items")
}

// SQLTx граница транзакции поверх sqlx; вложенный вызов переиспользует
// уже открытую транзакцию из контекста
type SQLTx struct{ store *SQLStore }

func NewSQLTx(store *SQLStore) *SQLTx { return &SQLTx{store: store} }

var _ TxManager = (*SQLTx)(nil)

func (t *SQLTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	tx, err := t.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
