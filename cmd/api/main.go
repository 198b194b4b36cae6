package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aidar/team-requests-service/internal/app"
	"github.com/aidar/team-requests-service/internal/config"
)

func main() {
	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	// Создаем экземпляр приложения
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Не удалось создать приложение: %v", err)
	}
	logger := application.Logger()

	// Инициализируем приложение (подключение к БД, брокер, роутинг)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := application.Initialize(ctx); err != nil {
		log.Fatalf("Не удалось инициализировать приложение: %v", err)
	}

	// Настраиваем graceful shutdown для корректного завершения
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Запускаем HTTP сервер и фоновые компоненты
	runErr := make(chan error, 1)
	go func() {
		runErr <- application.Run(ctx)
	}()

	logger.Info("Service started", "port", cfg.Server.Port, "consumer_enabled", cfg.RabbitMQ.ConsumerEnabled)

	// Ожидаем сигнал прерывания или падение одного из компонентов
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-runErr:
		if err != nil {
			logger.Error("Component failed", "error", err)
		}
	}

	// Останавливаем потребителя, ретранслятор и аудит
	cancel()

	// Создаем контекст с таймаутом для graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown gracefully", "error", err)
		os.Exit(1)
	}

	logger.Info("Service stopped")
}
