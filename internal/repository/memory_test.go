package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lavka/internal/domain"
)

func TestMemoryCategoriesCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryCategories(store)

	c := domain.Category{Name: "Kitchen", Description: "appliances"}
	require.NoError(t, repo.Create(ctx, &c))
	require.NotZero(t, c.ID)
	require.False(t, c.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Kitchen", got.Name)

	got, err = repo.GetByName(ctx, "kitchen")
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	c.Name = "Cookware"
	require.NoError(t, repo.Update(ctx, &c))
	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Cookware", got.Name)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, c.ID), ErrNotFound)
}

func TestMemoryInventories(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryInventories(store)

	inv := domain.Inventory{ProductID: 7, Quantity: 5, IsActive: true}
	require.NoError(t, repo.Create(ctx, &inv))

	got, err := repo.GetByProductID(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Quantity)

	got, err = repo.UpdateQuantity(ctx, 7, 12)
	require.NoError(t, err)
	require.EqualValues(t, 12, got.Quantity)

	_, err = repo.UpdateQuantity(ctx, 8, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteByProductID(ctx, 7))
	_, err = repo.GetByProductID(ctx, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOrdersList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryOrders(store)
	user := store.SeedUser(domain.User{Email: "jane@example.com", Name: "Jane"})
	other := store.SeedUser(domain.User{Email: "bob@example.com", Name: "Bob"})

	totals := []string{"10.00", "30.00", "20.00"}
	for _, total := range totals {
		o := domain.Order{
			UserID: user.ID,
			Status: domain.OrderStatusPending,
			Total:  decimal.RequireFromString(total),
		}
		require.NoError(t, repo.Create(ctx, &o))
	}
	cancelled := domain.Order{
		UserID: other.ID,
		Status: domain.OrderStatusCancelled,
		Total:  decimal.RequireFromString("99.00"),
	}
	require.NoError(t, repo.Create(ctx, &cancelled))

	// сортировка по сумме по возрастанию
	orders, total, err := repo.List(ctx, OrderQuery{SortBy: "total", SortOrder: "ASC"})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.True(t, orders[0].Total.LessThan(orders[1].Total))

	// фильтр по статусу
	st := domain.OrderStatusCancelled
	orders, total, err = repo.List(ctx, OrderQuery{Status: &st})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, other.ID, orders[0].UserID)

	// фильтр по диапазону суммы
	min := decimal.RequireFromString("15")
	max := decimal.RequireFromString("35")
	_, total, err = repo.List(ctx, OrderQuery{MinTotal: &min, MaxTotal: &max})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	// пагинация: страница за пределами выборки пуста, total сохраняется
	orders, total, err = repo.List(ctx, OrderQuery{Page: 5, Limit: 2})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Empty(t, orders)

	// выборка по пользователю
	_, total, err = repo.ListByUser(ctx, user.ID, OrderQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
}

func TestMemoryOrderItems(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryOrderItems(store)

	for i := 0; i < 3; i++ {
		item := domain.OrderItem{OrderID: 1, ProductID: int64(i + 1), Quantity: 1}
		require.NoError(t, repo.Create(ctx, &item))
	}
	item := domain.OrderItem{OrderID: 2, ProductID: 9, Quantity: 1}
	require.NoError(t, repo.Create(ctx, &item))

	items, err := repo.ListByOrderID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NoError(t, repo.DeleteByOrderID(ctx, 1))
	items, err = repo.ListByOrderID(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, items)
	items, err = repo.ListByOrderID(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

// Ошибка внутри fn откатывает все записи, сделанные в транзакции.
func TestMemoryTxRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	categories := NewMemoryCategories(store)
	inventories := NewMemoryInventories(store)
	tx := NewMemoryTx(store)

	inv := domain.Inventory{ProductID: 1, Quantity: 10, IsActive: true}
	require.NoError(t, inventories.Create(ctx, &inv))

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		c := domain.Category{Name: "Doomed"}
		if err := categories.Create(ctx, &c); err != nil {
			return err
		}
		if _, err := inventories.UpdateQuantity(ctx, 1, 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = categories.GetByName(ctx, "Doomed")
	require.ErrorIs(t, err, ErrNotFound)
	got, err := inventories.GetByProductID(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, got.Quantity)
}

func TestMemoryTxCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	categories := NewMemoryCategories(store)
	tx := NewMemoryTx(store)

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		c := domain.Category{Name: "Kept"}
		return categories.Create(ctx, &c)
	})
	require.NoError(t, err)

	_, err = categories.GetByName(ctx, "Kept")
	require.NoError(t, err)
}

func TestMemoryConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewMemoryProducts(store)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			p := domain.Product{CategoryID: 1, Name: fmt.Sprintf("p-%d", i), Price: decimal.NewFromInt(1), IsActive: true}
			_ = repo.Create(ctx, &p)
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, list, n)
	seen := make(map[int64]bool, n)
	for _, p := range list {
		require.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
	}
}
