package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lavka/internal/repository"
)

func setupCatalog(t *testing.T) (*CategoryService, *ProductService, *InventoryService) {
	t.Helper()
	store := repository.NewMemoryStore()
	categoriesRepo := repository.NewMemoryCategories(store)
	productsRepo := repository.NewMemoryProducts(store)
	inventories := repository.NewMemoryInventories(store)
	tx := repository.NewMemoryTx(store)
	ledger := NewInventoryService(inventories, productsRepo)
	return NewCategoryService(categoriesRepo),
		NewProductService(productsRepo, categoriesRepo, ledger, tx),
		ledger
}

func TestProductCreate(t *testing.T) {
	ctx := context.Background()
	cs, ps, ledger := setupCatalog(t)
	cat, err := cs.Create(ctx, "Kitchen", "appliances")
	require.NoError(t, err)

	p, err := ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.RequireFromString("25.50")})
	require.NoError(t, err)
	require.True(t, p.IsActive)

	// складская запись заводится вместе с товаром
	inv, err := ledger.GetByProductID(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, inv.Quantity)
	require.EqualValues(t, 0, inv.MinQuantity)
	require.NotNil(t, inv.MaxQuantity)
	require.EqualValues(t, 9999, *inv.MaxQuantity)
	require.True(t, inv.IsActive)
}

func TestProductCreate_Validation(t *testing.T) {
	ctx := context.Background()
	cs, ps, _ := setupCatalog(t)
	cat, err := cs.Create(ctx, "Kitchen", "")
	require.NoError(t, err)

	_, err = ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = ps.Create(ctx, NewProductInput{CategoryID: 999, Name: "Kettle", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.NewFromInt(2)})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestProductUpdate(t *testing.T) {
	ctx := context.Background()
	cs, ps, _ := setupCatalog(t)
	cat, err := cs.Create(ctx, "Kitchen", "")
	require.NoError(t, err)
	p, err := ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.RequireFromString("25.50")})
	require.NoError(t, err)

	name := "Electric kettle"
	price := decimal.RequireFromString("30.00")
	inactive := false
	got, err := ps.Update(ctx, p.ID, UpdateProductInput{Name: &name, Price: &price, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, name, got.Name)
	require.True(t, got.Price.Equal(price))
	require.False(t, got.IsActive)

	empty := ""
	_, err = ps.Update(ctx, p.ID, UpdateProductInput{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidInput)

	badCat := int64(999)
	_, err = ps.Update(ctx, p.ID, UpdateProductInput{CategoryID: &badCat})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProductDelete(t *testing.T) {
	ctx := context.Background()
	cs, ps, ledger := setupCatalog(t)
	cat, err := cs.Create(ctx, "Kitchen", "")
	require.NoError(t, err)
	p, err := ps.Create(ctx, NewProductInput{CategoryID: cat.ID, Name: "Kettle", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.NoError(t, ps.Delete(ctx, p.ID))
	_, err = ps.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	// остаток удаляется вместе с товаром
	_, err = ledger.GetByProductID(ctx, p.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, ps.Delete(ctx, p.ID), repository.ErrNotFound)
}

func TestProductList_Filters(t *testing.T) {
	ctx := context.Background()
	cs, ps, _ := setupCatalog(t)
	kitchen, err := cs.Create(ctx, "Kitchen", "")
	require.NoError(t, err)
	garden, err := cs.Create(ctx, "Garden", "")
	require.NoError(t, err)

	_, err = ps.Create(ctx, NewProductInput{CategoryID: kitchen.ID, Name: "Kettle", Price: decimal.RequireFromString("25.50")})
	require.NoError(t, err)
	mug, err := ps.Create(ctx, NewProductInput{CategoryID: kitchen.ID, Name: "Mug", Price: decimal.RequireFromString("4.20")})
	require.NoError(t, err)
	_, err = ps.Create(ctx, NewProductInput{CategoryID: garden.ID, Name: "Shovel", Price: decimal.RequireFromString("15.00")})
	require.NoError(t, err)

	list, err := ps.List(ctx, repository.ProductFilter{CategoryID: &kitchen.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = ps.List(ctx, repository.ProductFilter{NameSubstring: "ket"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Kettle", list[0].Name)

	min := decimal.RequireFromString("10")
	max := decimal.RequireFromString("20")
	list, err = ps.List(ctx, repository.ProductFilter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Shovel", list[0].Name)

	inactive := false
	_, err = ps.Update(ctx, mug.ID, UpdateProductInput{IsActive: &inactive})
	require.NoError(t, err)
	list, err = ps.List(ctx, repository.ProductFilter{OnlyActive: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestCategoryCRUD(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := setupCatalog(t)

	_, err := cs.Create(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	cat, err := cs.Create(ctx, "Kitchen", "appliances")
	require.NoError(t, err)
	_, err = cs.Create(ctx, "kitchen", "dup")
	require.ErrorIs(t, err, ErrAlreadyExists)

	got, err := cs.Update(ctx, cat.ID, "Cookware", "pots and pans")
	require.NoError(t, err)
	require.Equal(t, "Cookware", got.Name)

	list, err := cs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, cs.Delete(ctx, cat.ID))
	_, err = cs.GetByID(ctx, cat.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
