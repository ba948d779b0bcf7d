package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	_ "lavka/docs"
	"lavka/internal/config"
	httpapi "lavka/internal/http"
	"lavka/internal/repository"
	"lavka/internal/service"
)

const appID = "lavka"

func main() {
	app := &cli.App{
		Name:   appID,
		Usage:  "e-commerce order backend",
		Action: runService,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("service stopped")
	}
}

func runService(_ *cli.Context) error {
	cfg, err := config.Parse(appID)
	if err != nil {
		return err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	deps, err := buildDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	ledger := service.NewInventoryService(deps.inventories, deps.products)
	categoriesSvc := service.NewCategoryService(deps.categories)
	productsSvc := service.NewProductService(deps.products, deps.categories, ledger, deps.tx)
	ordersSvc := service.NewOrderService(
		deps.orders, deps.items,
		deps.users, deps.addresses,
		deps.products, deps.inventories,
		ledger, deps.tx,
	)

	srv := httpapi.NewServer(log, categoriesSvc, productsSvc, ledger, ordersSvc)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: srv.Engine(),
	}

	go func() {
		log.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	return nil
}

// dependencies собранный набор репозиториев поверх выбранного хранилища
type dependencies struct {
	users       repository.UserRepository
	addresses   repository.AddressRepository
	categories  repository.CategoryRepository
	products    repository.ProductRepository
	inventories repository.InventoryRepository
	orders      repository.OrderRepository
	items       repository.OrderItemRepository
	tx          repository.TxManager
	close       func()
}

func buildDependencies(cfg *config.Config, log *logrus.Logger) (*dependencies, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn("DATABASE_DSN is empty, using in-memory store")
		store := repository.NewMemoryStore()
		return &dependencies{
			users:       repository.NewMemoryUsers(store),
			addresses:   repository.NewMemoryAddresses(store),
			categories:  repository.NewMemoryCategories(store),
			products:    repository.NewMemoryProducts(store),
			inventories: repository.NewMemoryInventories(store),
			orders:      repository.NewMemoryOrders(store),
			items:       repository.NewMemoryOrderItems(store),
			tx:          repository.NewMemoryTx(store),
			close:       func() {},
		}, nil
	}

	db, err := sqlx.Connect("mysql", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := repository.NewSQLStore(db)
	return &dependencies{
		users:       repository.NewSQLUsers(store),
		addresses:   repository.NewSQLAddresses(store),
		categories:  repository.NewSQLCategories(store),
		products:    repository.NewSQLProducts(store),
		inventories: repository.NewSQLInventories(store),
		orders:      repository.NewSQLOrders(store),
		items:       repository.NewSQLOrderItems(store),
		tx:          repository.NewSQLTx(store),
		close:       func() { _ = db.Close() },
	}, nil
}
