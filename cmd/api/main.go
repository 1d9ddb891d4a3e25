// Package main (in api-subfolder) provides launch of the HTTP API
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/appconfig"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"github.com/UnendingLoop/ImageGenAPI/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := appconfig.New("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	settings := appconfig.Load(appConfig)

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(settings.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildContainer(ctx, settings)
	if err != nil {
		if app != nil {
			app.shutdown()
		}
		zlog.Logger.Fatal().Err(err).Msg("Failed to init application")
	}

	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewImageHandler(app.service)

	// сетапим сервер
	engine := ginext.New(settings.GinMode)
	engine.Use(ginext.Recovery())
	engine.Use(app.metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", mwlogger.RequestIDHeader}
	engine.Use(cors.New(corsConfig))

	engine.GET("/", handlers.Root)
	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/generate", handlers.Generate)                            // генерация картинки
	engine.POST("/download", handlers.RemoveBackground)                    // удаление фона
	engine.POST("/generate/generate_image_description", handlers.Describe) // описание картинки
	engine.POST("/upscale", handlers.Upscale)                              // апскейл
	engine.GET("/history", handlers.History)                               // история операций
	engine.GET("/metrics", gin.WrapH(app.metrics.Handler()))

	// статика только для локального хранилища
	for path, dir := range storage.Static(app.storage) {
		engine.Static(path, dir)
	}

	srv := &http.Server{
		Addr:              ":" + settings.AppPort,
		Handler:           mwlogger.NewMWLogger(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Msgf("Server running on http://localhost%s", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown server gracefully")
	}

	app.shutdown()
	zlog.Logger.Info().Msg("Exiting API...")
}
