package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

var (
	ErrNotEnoughStock    = errors.New("not enough stock")
	ErrInvalidTransition = errors.New("status transition is not allowed")
	ErrAddressOwnership  = errors.New("address does not belong to the user")
	ErrProductInactive   = errors.New("product is inactive")
	ErrOrderNotDeletable = errors.New("shipped or delivered orders cannot be deleted")
)

const (
	minOrderQuantity = 1
	maxOrderQuantity = 9999
)

// OrderItemInput позиция в запросе на создание заказа
type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

// CreateOrderInput запрос на создание заказа
type CreateOrderInput struct {
	UserID    string
	AddressID string
	Items     []OrderItemInput
}

// UpdateOrderInput частичное обновление: статус и/или адрес
type UpdateOrderInput struct {
	Status    *string
	AddressID *string
}

// OrderPage страница выборки заказов
type OrderPage struct {
	Orders     []domain.Order        `json:"data"`
	Pagination repository.Pagination `json:"pagination"`
}

// OrderService логика заказов: оформление со списанием остатков, машина
// статусов, отмена и удаление с возвратом на склад
type OrderService struct {
	orders      repository.OrderRepository
	items       repository.OrderItemRepository
	users       repository.UserRepository
	addresses   repository.AddressRepository
	products    repository.ProductRepository
	inventories repository.InventoryRepository
	ledger      *InventoryService
	tx          repository.TxManager
}

func NewOrderService(
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	users repository.UserRepository,
	addresses repository.AddressRepository,
	products repository.ProductRepository,
	inventories repository.InventoryRepository,
	ledger *InventoryService,
	tx repository.TxManager,
) *OrderService {
	return &OrderService{
		orders:      orders,
		items:       items,
		users:       users,
		addresses:   addresses,
		products:    products,
		inventories: inventories,
		ledger:      ledger,
		tx:          tx,
	}
}

// CreateOrder проверяет запрос целиком и только потом атомарно создаёт заказ,
// позиции и списывает остатки. Ошибка на любой позиции не оставляет следов.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "userId must be a valid UUID")
	}
	addressID, err := uuid.Parse(in.AddressID)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "addressId must be a valid UUID")
	}
	if len(in.Items) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return nil, errors.Wrap(ErrInvalidInput, "productId must be positive")
		}
		if it.Quantity < minOrderQuantity || it.Quantity > maxOrderQuantity {
			return nil, errors.Wrapf(ErrInvalidInput, "quantity must be between %d and %d", minOrderQuantity, maxOrderQuantity)
		}
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "user")
	}
	address, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return nil, errors.Wrap(err, "address")
	}
	if address.UserID != userID {
		return nil, ErrAddressOwnership
	}

	// все позиции проверяются до первой записи
	products := make(map[int64]*domain.Product, len(in.Items))
	total := decimal.Zero
	for _, it := range in.Items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "product %d", it.ProductID)
		}
		if !p.IsActive {
			return nil, errors.Wrapf(ErrProductInactive, "product %d", it.ProductID)
		}
		inv, err := s.inventories.GetByProductID(ctx, it.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "inventory for product %d", it.ProductID)
		}
		if inv.Quantity < it.Quantity {
			return nil, errors.Wrapf(ErrNotEnoughStock, "product %q: available %d, requested %d", p.Name, inv.Quantity, it.Quantity)
		}
		products[it.ProductID] = p
		total = total.Add(p.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}

	var created *domain.Order
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{
			UserID:    userID,
			AddressID: addressID,
			Status:    domain.OrderStatusPending,
			Total:     total,
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		for _, it := range in.Items {
			p := products[it.ProductID]
			item := domain.OrderItem{
				OrderID:   o.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
				Subtotal:  p.Price.Mul(decimal.NewFromInt(it.Quantity)),
			}
			if err := s.items.Create(ctx, &item); err != nil {
				return err
			}
			// остаток перечитывается внутри транзакции: SQL-реализация
			// блокирует строку, конкурентное списание не потеряется
			inv, err := s.inventories.GetByProductID(ctx, it.ProductID)
			if err != nil {
				return errors.Wrapf(err, "inventory for product %d", it.ProductID)
			}
			if inv.Quantity < it.Quantity {
				return errors.Wrapf(ErrNotEnoughStock, "product %q: available %d, requested %d", p.Name, inv.Quantity, it.Quantity)
			}
			if _, err := s.inventories.UpdateQuantity(ctx, it.ProductID, inv.Quantity-it.Quantity); err != nil {
				return err
			}
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "order")
	}
	return order, nil
}

// GetOrders постраничная выборка заказов. Пустой результат намеренно
// считается ошибкой "не найдено" — поведение продукта, не дефект.
func (s *OrderService) GetOrders(ctx context.Context, q repository.OrderQuery) (*OrderPage, error) {
	q = q.Normalize()
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 && total == 0 {
		return nil, errors.Wrap(repository.ErrNotFound, "orders")
	}
	return &OrderPage{Orders: orders, Pagination: repository.NewPagination(q, total)}, nil
}

// GetOrdersByUser выборка заказов пользователя; пользователь обязан существовать
func (s *OrderService) GetOrdersByUser(ctx context.Context, rawUserID string, q repository.OrderQuery) (*OrderPage, error) {
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "userId must be a valid UUID")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "user")
	}
	q = q.Normalize()
	orders, total, err := s.orders.ListByUser(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 && total == 0 {
		return nil, errors.Wrap(repository.ErrNotFound, "orders for user")
	}
	return &OrderPage{Orders: orders, Pagination: repository.NewPagination(q, total)}, nil
}

// UpdateOrder меняет статус по таблице переходов и/или адрес доставки.
// Переход в CANCELLED возвращает списанные остатки в той же транзакции,
// что и запись статуса.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, in UpdateOrderInput) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "order")
	}

	var newStatus *domain.OrderStatus
	if in.Status != nil {
		st := domain.OrderStatus(*in.Status)
		if !st.Valid() {
			return nil, errors.Wrapf(ErrInvalidInput, "unknown status %q", *in.Status)
		}
		if !order.Status.CanTransitionTo(st) {
			return nil, errors.Wrapf(ErrInvalidTransition, "from %s to %s", order.Status, st)
		}
		newStatus = &st
	}

	if in.AddressID != nil {
		addressID, err := uuid.Parse(*in.AddressID)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidInput, "addressId must be a valid UUID")
		}
		address, err := s.addresses.GetByID(ctx, addressID)
		if err != nil {
			return nil, errors.Wrap(err, "address")
		}
		if address.UserID != order.UserID {
			return nil, ErrAddressOwnership
		}
		order.AddressID = addressID
	}

	if newStatus != nil && *newStatus == domain.OrderStatusCancelled {
		err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			items, err := s.items.ListByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if _, err := s.ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
			order.Status = domain.OrderStatusCancelled
			return s.orders.Update(ctx, order)
		})
		if err != nil {
			return nil, err
		}
		return order, nil
	}

	if newStatus != nil {
		order.Status = *newStatus
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteOrder удаляет заказ вместе с позициями. Отправленные и доставленные
// заказы не удаляются. Остатки возвращаются ровно один раз: если заказ уже
// отменён, возврат был сделан при отмене.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "order")
	}
	if order.Status == domain.OrderStatusShipped || order.Status == domain.OrderStatusDelivered {
		return errors.Wrapf(ErrOrderNotDeletable, "status %s", order.Status)
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if order.Status != domain.OrderStatusCancelled {
			items, err := s.items.ListByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if _, err := s.ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		if err := s.items.DeleteByOrderID(ctx, order.ID); err != nil {
			return err
		}
		return s.orders.Delete(ctx, order.ID)
	})
}
