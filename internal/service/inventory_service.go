package service

import (
	"context"

	"github.com/pkg/errors"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

var (
	ErrStockAboveMax = errors.New("quantity exceeds the product maximum")
	ErrStockBelowMin = errors.New("quantity falls below the product minimum")
)

// defaultMaxQuantity потолок остатка для нового товара
const defaultMaxQuantity int64 = 9999

// InventoryService ведёт складские остатки: пополнение и списание с проверкой
// границ, возврат при отмене заказа
type InventoryService struct {
	inventories repository.InventoryRepository
	products    repository.ProductRepository
}

func NewInventoryService(inventories repository.InventoryRepository, products repository.ProductRepository) *InventoryService {
	return &InventoryService{inventories: inventories, products: products}
}

// GetByProductID возвращает остаток; товар обязан существовать
func (s *InventoryService) GetByProductID(ctx context.Context, productID int64) (*domain.Inventory, error) {
	if productID <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrapf(err, "product %d", productID)
	}
	inv, err := s.inventories.GetByProductID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "inventory for product %d", productID)
	}
	return inv, nil
}

// Increase пополняет остаток с проверкой верхней границы
func (s *InventoryService) Increase(ctx context.Context, productID, amount int64) (*domain.Inventory, error) {
	if amount <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "amount must be positive")
	}
	inv, err := s.inventories.GetByProductID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "inventory for product %d", productID)
	}
	newQuantity := inv.Quantity + amount
	if inv.MaxQuantity != nil && newQuantity > *inv.MaxQuantity {
		return nil, errors.Wrapf(ErrStockAboveMax, "product %d: %d > %d", productID, newQuantity, *inv.MaxQuantity)
	}
	return s.inventories.UpdateQuantity(ctx, productID, newQuantity)
}

// Decrease списывает остаток. Нижняя граница проверяется всегда, в том числе
// при нулевом минимуме.
func (s *InventoryService) Decrease(ctx context.Context, productID, amount int64) (*domain.Inventory, error) {
	if amount <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "amount must be positive")
	}
	inv, err := s.inventories.GetByProductID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "inventory for product %d", productID)
	}
	newQuantity := inv.Quantity - amount
	if newQuantity < inv.MinQuantity {
		return nil, errors.Wrapf(ErrStockBelowMin, "product %d: %d < %d", productID, newQuantity, inv.MinQuantity)
	}
	return s.inventories.UpdateQuantity(ctx, productID, newQuantity)
}

// Restore возвращает ранее списанное количество при отмене или удалении
// заказа. Верхняя граница не проверяется: возврат собственного списания не
// должен блокироваться потолком, достигнутым обычным пополнением.
func (s *InventoryService) Restore(ctx context.Context, productID, amount int64) (*domain.Inventory, error) {
	if amount <= 0 {
		return nil, errors.Wrap(ErrInvalidInput, "amount must be positive")
	}
	inv, err := s.inventories.GetByProductID(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "inventory for product %d", productID)
	}
	return s.inventories.UpdateQuantity(ctx, productID, inv.Quantity+amount)
}

// CreateForProduct заводит запись остатка для нового товара
func (s *InventoryService) CreateForProduct(ctx context.Context, productID int64) (*domain.Inventory, error) {
	maxQuantity := defaultMaxQuantity
	inv := domain.Inventory{
		ProductID:   productID,
		Quantity:    0,
		MinQuantity: 0,
		MaxQuantity: &maxQuantity,
		IsActive:    true,
	}
	if err := s.inventories.Create(ctx, &inv); err != nil {
		return nil, errors.Wrapf(err, "create inventory for product %d", productID)
	}
	return &inv, nil
}

// DeleteForProduct удаляет запись остатка вместе с товаром
func (s *InventoryService) DeleteForProduct(ctx context.Context, productID int64) error {
	return errors.Wrapf(s.inventories.DeleteByProductID(ctx, productID), "delete inventory for product %d", productID)
}
