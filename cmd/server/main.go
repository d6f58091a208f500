package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pyle/loaner/internal/audit"
	auditrepo "github.com/pyle/loaner/internal/audit/repository"
	"github.com/pyle/loaner/internal/config"
	"github.com/pyle/loaner/internal/db"
	devicerepo "github.com/pyle/loaner/internal/device/repository"
	"github.com/pyle/loaner/internal/device/service"
	"github.com/pyle/loaner/internal/directory"
	"github.com/pyle/loaner/internal/events"
	policyengine "github.com/pyle/loaner/internal/policy/engine"
	"github.com/pyle/loaner/internal/search"
	"github.com/pyle/loaner/internal/server"
	settingsdomain "github.com/pyle/loaner/internal/settings/domain"
	settingsrepo "github.com/pyle/loaner/internal/settings/repository"
	shelfrepo "github.com/pyle/loaner/internal/shelf/repository"
	"github.com/pyle/loaner/internal/telemetry/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := otel.NewProviders(ctx,
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		"loaner",
		os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
	)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	deviceRepo := devicerepo.NewPostgresRepository(database)
	shelfRepo := shelfrepo.NewPostgresRepository(database)
	settingsRepo := settingsrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database))

	// The search index is a projection of the store: rebuild at startup,
	// then apply committed writes asynchronously.
	index := search.NewMemoryIndex()
	devices, err := deviceRepo.ListAll(ctx)
	if err != nil {
		log.Fatalf("list devices: %v", err)
	}
	if err := search.Rebuild(ctx, index, devices); err != nil {
		log.Fatalf("rebuild index: %v", err)
	}
	indexer := search.NewIndexer(index)
	defer indexer.Close()

	evaluator, err := policyengine.NewOPAEvaluator()
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	var producer events.Producer
	if brokers := cfg.EventsKafkaBrokersList(); len(brokers) > 0 {
		kp, err := events.NewKafkaProducer(brokers, cfg.EventsKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		producer = kp
	} else {
		producer = otel.NewLifecycleEmitter(providers.LoggerProvider)
	}
	defer func() {
		time.Sleep(events.ShutdownDrainDuration)
		_ = producer.Close()
	}()

	dir := directory.NewHTTPClient(cfg.DirectoryAPIKey, cfg.DirectoryBaseURL)

	defaults := settingsdomain.LoanSettings{
		AllowGuestMode:          cfg.AllowGuestMode,
		LoanDurationDays:        cfg.LoanDurationDays,
		MaximumLoanDurationDays: cfg.MaximumLoanDurationDays,
	}
	lifecycle := service.NewLifecycle(
		deviceRepo,
		dir,
		settingsRepo,
		defaults,
		evaluator,
		auditLogger,
		producer,
		indexer,
		index,
		service.OrgUnits{
			Default:    cfg.DefaultOU,
			Guest:      cfg.GuestOU,
			Unenrolled: cfg.UnenrolledOU,
		},
	)
	tokens := service.NewPageTokenCodec([]byte(cfg.PageTokenSecret), cfg.TokenTTL())
	query := service.NewQuery(deviceRepo, shelfRepo, index, tokens)

	s := server.New(server.Deps{
		Lifecycle:           lifecycle,
		Query:               query,
		HealthPinger:        database,
		HealthPolicyChecker: evaluator,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	indexer.WaitIdle()
	log.Println("gRPC server stopped")
}
