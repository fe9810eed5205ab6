// Command notifier consumes booking lifecycle events and turns them into
// guest, host and operations notifications.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/inbox"
	"staybook/internal/infra/notify"
	"staybook/internal/infra/obs"
)

const consumerName = "notifier"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env).With("component", consumerName)
	if len(cfg.KafkaBrokers) == 0 || cfg.MongoURI == "" {
		logger.Error("notifier needs KAFKA_BROKERS and MONGO_URI")
		os.Exit(1)
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Close(context.Background())

	seen, err := inbox.NewStore(ctx, client.DB, consumerName)
	if err != nil {
		logger.Error("inbox setup failed", "error", err)
		os.Exit(1)
	}

	handler := &notify.EventHandler{
		Inbox:        seen,
		Notifier:     notify.LogNotifier{Logger: logger},
		OpsRecipient: getenv("OPS_NOTIFY_RECIPIENT", "payments-ops"),
		Logger:       logger,
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, saramaCfg, handler, logger)
	if err != nil {
		logger.Error("kafka consumer setup failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	topic := cfg.TopicPrefix + "booking.events.v1"
	logger.Info("notifier consuming", "topic", topic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
