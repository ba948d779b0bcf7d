package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lavka/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// UserRepository только то, что нужно ядру заказов
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AddressRepository поиск адреса для проверки принадлежности
type AddressRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error)
}

// CategoryRepository интерфейс репозитория категорий
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, c *domain.Category) error
	Delete(ctx context.Context, id int64) error
}

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	CategoryID    *int64
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	OnlyActive    bool
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetByName(ctx context.Context, name string) (*domain.Product, error)
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

// InventoryRepository складской остаток; одна запись на товар.
// GetByProductID внутри транзакции обязан блокировать строку на запись,
// иначе два конкурентных заказа прочитают один и тот же остаток.
type InventoryRepository interface {
	Create(ctx context.Context, inv *domain.Inventory) error
	GetByProductID(ctx context.Context, productID int64) (*domain.Inventory, error)
	UpdateQuantity(ctx context.Context, productID int64, quantity int64) (*domain.Inventory, error)
	DeleteByProductID(ctx context.Context, productID int64) error
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, q OrderQuery) ([]domain.Order, int64, error)
}

// OrderItemRepository позиции заказа; живут и умирают вместе с заказом
type OrderItemRepository interface {
	Create(ctx context.Context, item *domain.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	DeleteByOrderID(ctx context.Context, orderID int64) error
}

// TxManager абстракция транзакции: запись заказа, позиций и остатков
// либо применяется целиком, либо откатывается целиком
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
