package main

import (
	"bytes"
	"context"
	"log"
	"time"

	config "github.com/avatarctic/client-runtime/go/configs"
	"github.com/avatarctic/client-runtime/go/internal/application/controllers"
	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/avatarctic/client-runtime/go/internal/infrastructure/apiserver"
	"github.com/avatarctic/client-runtime/go/internal/infrastructure/memcache"
	"github.com/avatarctic/client-runtime/go/internal/infrastructure/rest"
	"github.com/sirupsen/logrus"
)

const demoAddr = "127.0.0.1:8089"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting client runtime demo...")

	// In-process API stand-in for the real backend
	api := apiserver.New(42, logger)
	go func() {
		if err := api.Start(demoAddr); err != nil {
			logger.WithError(err).Debug("api server stopped")
		}
	}()
	time.Sleep(200 * time.Millisecond)

	// Shared cache and transport
	cache := memcache.New(&memcache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.DefaultTTL,
	}, logger)
	tokens := rest.NewEnvTokenProvider(cfg.API.TokenEnv, logger)
	client := rest.NewClient(&rest.ClientConfig{
		BaseURL: "http://" + demoAddr,
		Timeout: cfg.API.Timeout,
	}, tokens, logger)

	ctx := context.Background()

	// Single request with cache short-circuit
	getItem := func(ctx context.Context, id string) (*ports.Response[apiserver.Item], error) {
		return rest.GetJSON[apiserver.Item](ctx, client, "/items/"+id, nil)
	}
	itemReq := controllers.NewRequest(getItem, &controllers.RequestConfig[string, apiserver.Item]{
		Name:       "item",
		Cache:      cache,
		CacheTTL:   cfg.Cache.DefaultTTL,
		Retries:    cfg.Retry.Count,
		RetryDelay: cfg.Retry.Delay,
		Logger:     logger,
	})
	if item, err := itemReq.Execute(ctx, "1"); err == nil {
		logger.WithField("name", item.Name).Info("fetched item")
	}
	itemReq.Execute(ctx, "1") //nolint:errcheck // warm-cache demonstration
	logger.WithField("cached", cache.Has(`item:"1"`)).Info("second read served from cache")

	// Paginated listing
	pager := controllers.NewPaginated(rest.Pager[apiserver.Item](client, "/items"), &controllers.PaginatedConfig[apiserver.Item]{
		Name:     "items",
		PageSize: 10,
		Logger:   logger,
	})
	time.Sleep(300 * time.Millisecond)
	pager.NextPage()
	time.Sleep(300 * time.Millisecond)
	st := pager.State()
	logger.WithFields(logrus.Fields{"page": st.Pagination.Page, "total": st.Pagination.TotalItems}).Info("paginated state")
	pager.Close()

	// Infinite accumulation
	feed := controllers.NewInfinite(rest.Pager[apiserver.Item](client, "/items"), &controllers.InfiniteConfig{
		Name:     "feed",
		PageSize: 20,
		Logger:   logger,
	})
	for feed.State().HasMore {
		if err := feed.LoadMore(ctx); err != nil {
			break
		}
	}
	logger.WithField("items", len(feed.State().Items)).Info("feed fully loaded")
	feed.Close()

	// Debounced search
	search := controllers.NewSearch(rest.Searcher[apiserver.Item](client, "/search"), &controllers.SearchConfig{
		Name:     "item-search",
		Debounce: cfg.Search.Debounce,
		Logger:   logger,
	})
	search.SetQuery("item-1")
	time.Sleep(cfg.Search.Debounce + 300*time.Millisecond)
	logger.WithField("results", len(search.State().Results)).Info("search settled")
	search.Close()

	// Polling for freshness
	getStatus := func(ctx context.Context, _ struct{}) (*ports.Response[apiserver.Status], error) {
		return rest.GetJSON[apiserver.Status](ctx, client, "/status", nil)
	}
	poller := controllers.NewPolling(getStatus, &controllers.PollingConfig[apiserver.Status]{
		Name:     "status",
		Interval: cfg.Polling.Interval,
		Logger:   logger,
	})
	poller.Start(ctx, struct{}{})
	time.Sleep(300 * time.Millisecond)
	if s := poller.State(); s.Data != nil {
		logger.WithField("items", s.Data.ItemCount).Info("status polled")
	}
	poller.Close()

	// Optimistic mutation with server confirmation
	list := controllers.NewOptimisticList(controllers.OptimisticConfig[apiserver.Item]{
		Name:   "item-list",
		Key:    func(i apiserver.Item) string { return i.ID },
		Logger: logger,
	})
	list.SetItems(pager.State().Items)
	list.Add(ctx, apiserver.Item{ID: "tmp", Name: "optimistic"}, func(ctx context.Context) error {
		_, err := rest.PostJSON[apiserver.Item](ctx, client, "/items", apiserver.Item{Name: "optimistic"})
		return err
	})
	time.Sleep(300 * time.Millisecond)
	logger.WithField("items", len(list.Items())).Info("optimistic list settled")
	list.Close()

	// Write with cache invalidation
	create := controllers.NewMutation(func(ctx context.Context, name string) (*ports.Response[apiserver.Item], error) {
		return rest.PostJSON[apiserver.Item](ctx, client, "/items", apiserver.Item{Name: name})
	}, &controllers.MutationConfig[apiserver.Item]{
		Name:               "item-create",
		Cache:              cache,
		InvalidatePatterns: []string{"^item:"},
		Logger:             logger,
	})
	if created, err := create.Mutate(ctx, "brand-new"); err == nil {
		logger.WithFields(logrus.Fields{"id": created.ID, "cached": cache.Has(`item:"1"`)}).Info("write expired the read cache")
	}
	create.Close()

	// Progress-tracked upload
	uploader := rest.NewUploader(client, cfg.Upload.Endpoint, cfg.Upload.FieldName)
	upload := controllers.NewUpload(uploader, &controllers.UploadConfig{
		Name:    "demo-upload",
		MaxSize: cfg.Upload.MaxSize,
		Logger:  logger,
	})
	payload := bytes.Repeat([]byte("avatarctic "), 1024)
	_, err = upload.Upload(ctx, ports.UploadFile{
		Name:        "demo.txt",
		Size:        int64(len(payload)),
		ContentType: "text/plain",
		Reader:      bytes.NewReader(payload),
	}, map[string]string{"source": "demo"})
	if err != nil {
		logger.WithError(err).Error("upload failed")
	} else {
		logger.WithField("percentage", upload.State().Percentage).Info("upload complete")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Echo().Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api server forced to shut down")
	}
	logger.Info("Demo finished")
}
