package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/realtime"
	"marketplace/internal/repository"
	"marketplace/internal/server"
	"marketplace/internal/service"
)

const shutdownTimeout = 10 * time.Second

var seedCategories = []service.CategoryInput{
	{Name: "Eletrônicos", Description: "Smartphones, tablets e acessórios tecnológicos"},
	{Name: "Computadores", Description: "Notebooks, PCs e periféricos"},
	{Name: "Moda", Description: "Roupas, calçados e acessórios"},
	{Name: "Casa", Description: "Móveis, decoração e utilidades domésticas"},
	{Name: "Esportes", Description: "Equipamentos e roupas esportivas"},
}

func main() {
	app := &cli.App{
		Name:   "marketplace",
		Usage:  "marketplace backend",
		Before: setup,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server",
				Action: serve,
			},
			{
				Name:   "indexes",
				Usage:  "create the MongoDB indexes and exit",
				Action: ensureIndexes,
			},
			{
				Name:  "seed",
				Usage: "create the default categories and an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "admin-name", Value: "Administrator"},
					&cli.StringFlag{Name: "admin-email", EnvVars: []string{"SEED_ADMIN_EMAIL"}, Required: true},
					&cli.StringFlag{Name: "admin-password", EnvVars: []string{"SEED_ADMIN_PASSWORD"}, Required: true},
				},
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("marketplace stopped")
	}
}

func setup(*cli.Context) error {
	if err := config.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	config.ConfigureLogger(config.AppEnv)
	return nil
}

func connect() (*mongo.Client, *mongo.Database, error) {
	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to MongoDB")
	}
	return client, client.Database(config.AppEnv.DBName), nil
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logrus.WithField("area", "DB").WithError(err).Warn("disconnect failed")
	}
}

type stores struct {
	users      *repository.MongoUserStore
	tokens     *repository.MongoRefreshTokenStore
	products   *repository.MongoProductStore
	categories *repository.MongoCategoryStore
	orders     *repository.MongoOrderStore
	reviews    *repository.MongoReviewStore
	messages   *repository.MongoMessageStore
}

func newStores(db *mongo.Database) stores {
	return stores{
		users:      repository.NewMongoUserStore(db),
		tokens:     repository.NewMongoRefreshTokenStore(db),
		products:   repository.NewMongoProductStore(db),
		categories: repository.NewMongoCategoryStore(db),
		orders:     repository.NewMongoOrderStore(db),
		reviews:    repository.NewMongoReviewStore(db),
		messages:   repository.NewMongoMessageStore(db),
	}
}

func serve(*cli.Context) error {
	cfg := config.AppEnv
	client, db, err := connect()
	if err != nil {
		return err
	}
	defer disconnect(client)

	if err := database.EnsureIndexes(db); err != nil {
		logrus.WithField("area", "DB").WithError(err).Warn("index warning")
	}

	s := newStores(db)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	hub := realtime.NewHub(realtime.NewLocalPresence())

	accounts := service.NewAccountService(s.users, s.tokens, s.products, issuer, cfg.RefreshTokenTTL)
	messages := service.NewMessageService(s.messages, s.users, hub)

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Tokens:   issuer,
		Users:    s.users,
		Accounts: accounts,
		Catalog:  service.NewCatalogService(s.products, s.categories),
		Orders:   service.NewOrderService(s.orders, s.products),
		Reviews:  service.NewReviewService(s.reviews, s.products, s.orders, s.users),
		Messages: messages,
		Search:   service.NewSearchService(s.products, s.users, s.orders),
		Socket:   realtime.NewServer(hub, issuer, s.users, messages, cfg.CORSOrigins),
		Ping: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{"area": "HTTP", "addr": srv.Addr, "env": cfg.AppEnv}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.WithField("area", "HTTP").Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func ensureIndexes(*cli.Context) error {
	client, db, err := connect()
	if err != nil {
		return err
	}
	defer disconnect(client)

	return database.EnsureIndexes(db)
}

// seed is idempotent: existing categories and accounts are left alone.
func seed(c *cli.Context) error {
	cfg := config.AppEnv
	client, db, err := connect()
	if err != nil {
		return err
	}
	defer disconnect(client)

	if err := database.EnsureIndexes(db); err != nil {
		return err
	}

	s := newStores(db)
	log := logrus.WithField("area", "SEED")
	ctx := c.Context

	catalog := service.NewCatalogService(s.products, s.categories)
	for _, in := range seedCategories {
		category, err := catalog.CreateCategory(ctx, in)
		if errors.Is(err, service.ErrConflict) {
			log.WithField("category", in.Name).Info("category exists, skipped")
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "seed category %s", in.Name)
		}
		log.WithFields(logrus.Fields{"category": category.Name, "slug": category.Slug}).Info("category created")
	}

	accounts := service.NewAccountService(s.users, s.tokens, s.products, auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL), cfg.RefreshTokenTTL)
	admin, err := accounts.CreateAdmin(ctx, c.String("admin-name"), c.String("admin-email"), c.String("admin-password"))
	if errors.Is(err, service.ErrConflict) {
		log.WithField("email", c.String("admin-email")).Info("admin exists, skipped")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	log.WithField("admin", admin.ID.Hex()).Info("admin created")
	return nil
}
