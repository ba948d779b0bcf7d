package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
)

// NewProductInput запрос на создание товара
type NewProductInput struct {
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
}

// UpdateProductInput запрос на обновление товара
type UpdateProductInput struct {
	CategoryID  *int64
	Name        *string
	Description *string
	Price       *decimal.Decimal
	IsActive    *bool
}

// ProductService бизнес-логика каталога; вместе с товаром живёт его складская
// запись: создаётся при создании товара, удаляется при удалении
type ProductService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	ledger     *InventoryService
	tx         repository.TxManager
}

func NewProductService(products repository.ProductRepository, categories repository.CategoryRepository, ledger *InventoryService, tx repository.TxManager) *ProductService {
	return &ProductService{products: products, categories: categories, ledger: ledger, tx: tx}
}

func (s *ProductService) Create(ctx context.Context, in NewProductInput) (*domain.Product, error) {
	if in.Name == "" || in.Price.IsNegative() || in.CategoryID <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, errors.Wrap(err, "category")
	}
	if _, err := s.products.GetByName(ctx, in.Name); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "product %q", in.Name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	p := domain.Product{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		IsActive:    true,
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, &p); err != nil {
			return err
		}
		_, err := s.ledger.CreateForProduct(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "product")
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.products.List(ctx, f)
}

func (s *ProductService) Update(ctx context.Context, id int64, in UpdateProductInput) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "product")
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			return nil, errors.Wrap(err, "category")
		}
		p.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, ErrInvalidInput
		}
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, ErrInvalidInput
		}
		p.Price = *in.Price
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return errors.Wrap(err, "product")
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.DeleteForProduct(ctx, id); err != nil {
			return err
		}
		return s.products.Delete(ctx, id)
	})
}
