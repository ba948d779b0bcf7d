package service

import (
	"context"

	"github.com/pkg/errors"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

// CategoryService простой CRUD категорий
type CategoryService struct {
	categories repository.CategoryRepository
}

func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

func (s *CategoryService) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.categories.GetByName(ctx, name); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "category %q", name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	c := domain.Category{Name: name, Description: description}
	if err := s.categories.Create(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "category")
	}
	return c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *CategoryService) Update(ctx context.Context, id int64, name, description string) (*domain.Category, error) {
	if id <= 0 || name == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "category")
	}
	c.Name = name
	c.Description = description
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return errors.Wrap(s.categories.Delete(ctx, id), "category")
}
