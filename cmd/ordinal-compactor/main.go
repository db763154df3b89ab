// Command ordinal-compactor is an AWS Lambda function subscribed to the
// ordering table's stream. It resequences domains after items are removed
// by TTL or by writers that bypass the orderer.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/ordinal/internal/config"
	"github.com/jacentio/ordinal/order"
	"github.com/jacentio/ordinal/store"
	"github.com/jacentio/ordinal/stream"
)

func main() {
	cfg, err := config.Load(os.Getenv("ORDINAL_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	client, err := cfg.DynamoDB.NewClient(context.Background())
	if err != nil {
		logger.Error("failed to create DynamoDB client", "error", err)
		os.Exit(1)
	}

	o := order.New(store.New(client, cfg.StoreConfig()), logger)
	handler := stream.NewHandler(o, logger)

	lambda.Start(handler.HandleCompaction)
}
