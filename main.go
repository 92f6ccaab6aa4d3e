package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moyoez/dropzone-go/api"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/api/notifyhub"
	"github.com/moyoez/dropzone-go/notify"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/upload"
)

func main() {
	cfg := tool.SetFlags()
	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlagOverrides(&appCfg, cfg)

	store, err := upload.NewFileSessionStore(filepath.Join(appCfg.UploadDir, upload.MetadataDirName))
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to open session store: %v", err)
	}
	batches := upload.NewBatchTracker(time.Duration(appCfg.BatchTimeoutMinutes) * time.Minute)

	var hub notify.Hub
	if appCfg.NotifyWebsocket {
		h := notifyhub.New()
		models.SetNotifyHub(h)
		hub = h
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		SocketPath: appCfg.NotifySocket,
		Command:    appCfg.NotifyCommand,
		Message:    appCfg.NotifyMessage,
		Disabled:   cfg.SkipNotify,
	}, hub)

	engine, err := upload.NewEngine(upload.EngineConfig{
		Root:              appCfg.UploadDir,
		MaxFileSize:       appCfg.MaxFileSizeBytes(),
		AllowedExtensions: appCfg.AllowedExtensions,
	}, store, batches, dispatcher)
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to prepare upload directory: %v", err)
	}
	tool.DefaultLogger.Infof("Receiving uploads into %s (max %s per file)", engine.Root(), notify.FormatSize(appCfg.MaxFileSizeBytes()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := upload.NewJanitor(engine, store, batches, upload.JanitorConfig{
		Interval:     time.Duration(appCfg.JanitorIntervalMinutes) * time.Minute,
		StaleTimeout: time.Duration(appCfg.StaleTimeoutMinutes) * time.Minute,
		MinDirAge:    time.Minute,
	})
	go janitor.Run(ctx)

	apiServer := api.NewServer(api.Options{
		Port:          appCfg.Port,
		Protocol:      appCfg.Protocol,
		Pin:           appCfg.Pin,
		InitPerMinute: appCfg.InitRatePerMinute,
		InitBurst:     appCfg.InitRateBurst,
		MaxChunkBytes: appCfg.MaxChunkSizeBytes(),
	}, engine, batches)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Errorf("Server shutdown: %v", err)
	}
	dispatcher.Wait()
}
