package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lavka/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID.
// Используется в тестах и при запуске без базы данных.
type MemoryStore struct {
	mu          sync.RWMutex
	nextCatID   int64
	nextProdID  int64
	nextInvID   int64
	nextOrderID int64
	nextItemID  int64

	usersByID      map[uuid.UUID]domain.User
	addressesByID  map[uuid.UUID]domain.Address
	categoriesByID map[int64]domain.Category
	productsByID   map[int64]domain.Product
	invByProductID map[int64]domain.Inventory
	ordersByID     map[int64]domain.Order
	itemsByID      map[int64]domain.OrderItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextCatID:      1,
		nextProdID:     1,
		nextInvID:      1,
		nextOrderID:    1,
		nextItemID:     1,
		usersByID:      make(map[uuid.UUID]domain.User),
		addressesByID:  make(map[uuid.UUID]domain.Address),
		categoriesByID: make(map[int64]domain.Category),
		productsByID:   make(map[int64]domain.Product),
		invByProductID: make(map[int64]domain.Inventory),
		ordersByID:     make(map[int64]domain.Order),
		itemsByID:      make(map[int64]domain.OrderItem),
	}
}

// transaction-aware locking helpers
type memTxKey struct{}

func isMemTx(ctx context.Context) bool {
	v := ctx.Value(memTxKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isMemTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isMemTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isMemTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isMemTx(ctx) {
		m.mu.Unlock()
	}
}

// SeedUser кладёт пользователя в хранилище; управление пользователями вне ядра
func (m *MemoryStore) SeedUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.usersByID[u.ID] = u
	return u
}

// SeedAddress кладёт адрес в хранилище
func (m *MemoryStore) SeedAddress(a domain.Address) domain.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	m.addressesByID[a.ID] = a
	return a
}

// MemoryUsers поиск пользователей
type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

var _ UserRepository = (*MemoryUsers)(nil)

func (mu *MemoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.usersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u
	return &cp, nil
}

// MemoryAddresses поиск адресов
type MemoryAddresses struct{ store *MemoryStore }

func NewMemoryAddresses(store *MemoryStore) *MemoryAddresses { return &MemoryAddresses{store: store} }

var _ AddressRepository = (*MemoryAddresses)(nil)

func (ma *MemoryAddresses) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	a, ok := ma.store.addressesByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := a
	return &cp, nil
}

// MemoryCategories репозиторий категорий
type MemoryCategories struct{ store *MemoryStore }

func NewMemoryCategories(store *MemoryStore) *MemoryCategories {
	return &MemoryCategories{store: store}
}

var _ CategoryRepository = (*MemoryCategories)(nil)

func (mc *MemoryCategories) Create(ctx context.Context, c *domain.Category) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	c.ID = mc.store.nextCatID
	mc.store.nextCatID++
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	mc.store.categoriesByID[c.ID] = *c
	return nil
}

func (mc *MemoryCategories) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.categoriesByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (mc *MemoryCategories) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	for _, c := range mc.store.categoriesByID {
		if strings.EqualFold(c.Name, name) {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mc *MemoryCategories) List(ctx context.Context) ([]domain.Category, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.Category, 0, len(mc.store.categoriesByID))
	for _, c := range mc.store.categoriesByID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (mc *MemoryCategories) Update(ctx context.Context, c *domain.Category) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.categoriesByID[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	mc.store.categoriesByID[c.ID] = *c
	return nil
}

func (mc *MemoryCategories) Delete(ctx context.Context, id int64) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.categoriesByID[id]; !ok {
		return ErrNotFound
	}
	delete(mc.store.categoriesByID, id)
	return nil
}

// MemoryProducts репозиторий товаров
type MemoryProducts struct{ store *MemoryStore }

func NewMemoryProducts(store *MemoryStore) *MemoryProducts { return &MemoryProducts{store: store} }

var _ ProductRepository = (*MemoryProducts)(nil)

func (mp *MemoryProducts) Create(ctx context.Context, p *domain.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	p.ID = mp.store.nextProdID
	mp.store.nextProdID++
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	mp.store.productsByID[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	p, ok := mp.store.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (mp *MemoryProducts) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	for _, p := range mp.store.productsByID {
		if strings.EqualFold(p.Name, name) {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mp *MemoryProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range mp.store.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.OnlyActive && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (mp *MemoryProducts) Update(ctx context.Context, p *domain.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.productsByID[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	mp.store.productsByID[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) Delete(ctx context.Context, id int64) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(mp.store.productsByID, id)
	return nil
}

// MemoryInventories складские остатки, ключ — ID товара
type MemoryInventories struct{ store *MemoryStore }

func NewMemoryInventories(store *MemoryStore) *MemoryInventories {
	return &MemoryInventories{store: store}
}

var _ InventoryRepository = (*MemoryInventories)(nil)

func (mi *MemoryInventories) Create(ctx context.Context, inv *domain.Inventory) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	inv.ID = mi.store.nextInvID
	mi.store.nextInvID++
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	mi.store.invByProductID[inv.ProductID] = *inv
	return nil
}

func (mi *MemoryInventories) GetByProductID(ctx context.Context, productID int64) (*domain.Inventory, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	inv, ok := mi.store.invByProductID[productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := inv
	return &cp, nil
}

func (mi *MemoryInventories) UpdateQuantity(ctx context.Context, productID int64, quantity int64) (*domain.Inventory, error) {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	inv, ok := mi.store.invByProductID[productID]
	if !ok {
		return nil, ErrNotFound
	}
	inv.Quantity = quantity
	inv.UpdatedAt = time.Now().UTC()
	mi.store.invByProductID[productID] = inv
	cp := inv
	return &cp, nil
}

func (mi *MemoryInventories) DeleteByProductID(ctx context.Context, productID int64) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.invByProductID[productID]; !ok {
		return ErrNotFound
	}
	delete(mi.store.invByProductID, productID)
	return nil
}

// MemoryOrders репозиторий заказов
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) Delete(ctx context.Context, id int64) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[id]; !ok {
		return ErrNotFound
	}
	delete(mo.store.ordersByID, id)
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error) {
	return mo.list(ctx, nil, q)
}

func (mo *MemoryOrders) ListByUser(ctx context.Context, userID uuid.UUID, q OrderQuery) ([]domain.Order, int64, error) {
	return mo.list(ctx, &userID, q)
}

func (mo *MemoryOrders) list(ctx context.Context, userID *uuid.UUID, q OrderQuery) ([]domain.Order, int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	q = q.Normalize()
	matched := make([]domain.Order, 0)
	for _, o := range mo.store.ordersByID {
		if userID != nil && o.UserID != *userID {
			continue
		}
		if !q.matches(o) {
			continue
		}
		matched = append(matched, o)
	}
	sortOrders(matched, q)
	total := int64(len(matched))
	start := q.Offset()
	if start >= len(matched) {
		return []domain.Order{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func sortOrders(orders []domain.Order, q OrderQuery) {
	less := func(a, b domain.Order) bool {
		switch q.SortBy {
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "total":
			return a.Total.LessThan(b.Total)
		case "status":
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if q.SortOrder == "ASC" {
			return less(orders[i], orders[j])
		}
		return less(orders[j], orders[i])
	})
}

// MemoryOrderItems позиции заказов
type MemoryOrderItems struct{ store *MemoryStore }

func NewMemoryOrderItems(store *MemoryStore) *MemoryOrderItems {
	return &MemoryOrderItems{store: store}
}

var _ OrderItemRepository = (*MemoryOrderItems)(nil)

func (mi *MemoryOrderItems) Create(ctx context.Context, item *domain.OrderItem) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	item.ID = mi.store.nextItemID
	mi.store.nextItemID++
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	mi.store.itemsByID[item.ID] = *item
	return nil
}

func (mi *MemoryOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	out := make([]domain.OrderItem, 0)
	for _, it := range mi.store.itemsByID {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (mi *MemoryOrderItems) DeleteByOrderID(ctx context.Context, orderID int64) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	for id, it := range mi.store.itemsByID {
		if it.OrderID == orderID {
			delete(mi.store.itemsByID, id)
		}
	}
	return nil
}

// MemoryTx эмулирует границу транзакции блокировкой записи
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Берём блокировку записи на весь fn и помечаем контекст, чтобы
	// репозитории пропускали внутренние локи. Перед fn снимается снимок
	// состояния: ошибка внутри fn откатывает все записи целиком.
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, memTxKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	nextCatID, nextProdID, nextInvID, nextOrderID, nextItemID int64

	users      map[uuid.UUID]domain.User
	addresses  map[uuid.UUID]domain.Address
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	inventory  map[int64]domain.Inventory
	orders     map[int64]domain.Order
	items      map[int64]domain.OrderItem
}

// snapshot копирует состояние под уже взятой блокировкой записи
func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		nextCatID:   m.nextCatID,
		nextProdID:  m.nextProdID,
		nextInvID:   m.nextInvID,
		nextOrderID: m.nextOrderID,
		nextItemID:  m.nextItemID,
		users:       copyMap(m.usersByID),
		addresses:   copyMap(m.addressesByID),
		categories:  copyMap(m.categoriesByID),
		products:    copyMap(m.productsByID),
		inventory:   copyMap(m.invByProductID),
		orders:      copyMap(m.ordersByID),
		items:       copyMap(m.itemsByID),
	}
}

func (m *MemoryStore) restore(snap memSnapshot) {
	m.nextCatID = snap.nextCatID
	m.nextProdID = snap.nextProdID
	m.nextInvID = snap.nextInvID
	m.nextOrderID = snap.nextOrderID
	m.nextItemID = snap.nextItemID
	m.usersByID = snap.users
	m.addressesByID = snap.addresses
	m.categoriesByID = snap.categories
	m.productsByID = snap.products
	m.invByProductID = snap.inventory
	m.ordersByID = snap.orders
	m.itemsByID = snap.items
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
