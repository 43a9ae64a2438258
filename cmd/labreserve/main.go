package main

import (
	bookinghandler "labreserve/internal/bookings/handler"
	bookingrepo "labreserve/internal/bookings/repository"
	bookingservice "labreserve/internal/bookings/service"
	bookingvalidator "labreserve/internal/bookings/validator"
	equipmenthandler "labreserve/internal/equipment/handler"
	equipmentrepo "labreserve/internal/equipment/repository"
	equipmentservice "labreserve/internal/equipment/service"
	equipmentvalidator "labreserve/internal/equipment/validator"
	"labreserve/internal/live"
	"labreserve/internal/reconcile"
	"labreserve/pkg/app"
	"labreserve/pkg/config"
	"labreserve/pkg/kafka"
	kafkaconfig "labreserve/pkg/kafka/config"
)

const ServiceName = "labreserve"

func main() {
	cfg := config.Load(ServiceName)

	// A broken configuration or unreachable database does not kill the
	// process: it comes up degraded so the probes can report why.
	if err := cfg.Validate(); err != nil {
		cfg.Log.Error("Invalid configuration", "error", err)
		runDegraded(cfg, "invalid configuration")
		return
	}

	cfg.LogConfiguration()

	if err := cfg.SetMongo(); err != nil {
		cfg.Log.Error("Failed to connect to MongoDB", "error", err)
		runDegraded(cfg, "database unreachable")
		return
	}
	defer cfg.GracefulShutdown()

	serverApp := app.NewApplication()

	events := initEvents(cfg, serverApp)

	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	slotLockRepo := bookingrepo.NewSlotLockRepository(cfg)
	equipmentRepo := equipmentrepo.NewMongoEquipmentRepository(cfg)

	equipmentService := equipmentservice.NewEquipmentService(
		equipmentRepo,
		equipmentvalidator.NewEquipmentValidator(cfg.Log),
		cfg,
	)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		slotLockRepo,
		equipmentService,
		bookingvalidator.NewBookingValidator(cfg.Log),
		events,
		cfg,
	)

	reconciler := reconcile.NewReconciler(bookingRepo, events, cfg)
	if err := reconciler.Start(); err != nil {
		cfg.Log.Fatal("Failed to start reconciler", "error", err)
	}
	serverApp.OnShutdown(reconciler.Stop)

	serverApp.SetApp(cfg,
		equipmenthandler.NewEquipmentHandler(equipmentService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		live.NewHandler(equipmentRepo, bookingRepo, cfg.Log),
	)

	cfg.Log.Info("Starting labreserve service", "database", cfg.MongoDatabaseName)
	serverApp.Run()
}

// initEvents builds the optional Kafka producer. A nil publisher turns
// event delivery off everywhere downstream.
func initEvents(cfg *config.Config, serverApp *app.Application) bookingservice.EventPublisher {
	if !cfg.EventsEnabled {
		return nil
	}

	producer, err := kafka.NewProducer(kafkaconfig.Load(), cfg.EventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Booking event publishing enabled", "topic", cfg.EventsTopic)
	return producer
}

func runDegraded(cfg *config.Config, reason string) {
	serverApp := app.NewApplication()
	serverApp.SetDegraded(cfg, reason)
	serverApp.Run()
}
