package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/assets"
	"storyhub/internal/clip"
	"storyhub/internal/composition"
	"storyhub/internal/export"
	"storyhub/internal/notify"
	"storyhub/internal/scene"
	"storyhub/internal/story"
	"storyhub/internal/transition"
	eventhub "storyhub/internal/sync"
	"storyhub/pkg/database"
	"storyhub/pkg/utils"
)

func main() {
	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Start the event fanout first (so you notice binding errors early)
	hub := eventhub.NewHub()
	router.GET("/ws", eventhub.WSHandler(hub))
	tcpSrv := eventhub.NewServer(srvCfg.EventAddr, hub)

	registry := notify.NewRegistry()
	notifySrv := notify.NewServer(srvCfg.NotifyAddr, registry, nil)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db":          dbCfg.Path,
			"export_dir":  srvCfg.ExportDir,
			"asset_dir":   srvCfg.AssetDir,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	locks := composition.NewLocks()

	storyRepo := story.NewRepo(db, locks)
	sceneRepo := scene.NewRepo(db, locks)
	clipRepo := clip.NewRepo(db, locks)
	transitionRepo := transition.NewRepo(db, locks)

	api := router.Group("/")

	story.NewHandler(storyRepo, hub).RegisterRoutes(router.Group("/stories"))
	scene.NewHandler(sceneRepo, hub).RegisterRoutes(api)
	clip.NewHandler(clipRepo, hub).RegisterRoutes(api)
	transition.NewHandler(transitionRepo, hub).RegisterRoutes(api)

	renderer := export.NewFFmpegRenderer(filepath.Join(srvCfg.ExportDir, "work"))
	orchestrator := export.NewOrchestrator(storyRepo, renderer, srvCfg.ExportDir, hub)
	export.NewHandler(orchestrator, notifySrv).RegisterRoutes(api)

	library := assets.NewLibrary(assets.NewDirSource(srvCfg.AssetDir, "local"))
	assets.NewHandler(library).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:    srvCfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notifySrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", srvCfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}
	if err := notifySrv.Close(); err != nil {
		log.Printf("notify shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
