package main

import (
	"context"
	"fmt"
	"time"

	mongoMigration "labreserve/internal/migrations/mongo"
	"labreserve/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	if err := cfg.SetMongo(); err != nil {
		cfg.Log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	fmt.Println("Migration completed successfully.")
}
