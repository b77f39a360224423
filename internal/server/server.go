package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/archive"
	"github.com/emrgen/impact/internal/auth"
	"github.com/emrgen/impact/internal/cache"
	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/config"
	"github.com/emrgen/impact/internal/fetch"
	"github.com/emrgen/impact/internal/job"
	"github.com/emrgen/impact/internal/jobs"
	"github.com/emrgen/impact/internal/llm"
	"github.com/emrgen/impact/internal/queue"
	"github.com/emrgen/impact/internal/service"
	"github.com/emrgen/impact/internal/store"
	"github.com/gobuffalo/packr"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcvalidator "github.com/grpc-ecosystem/go-grpc-middleware/validator"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const fetchTimeout = 30 * time.Second

// Server represents the server
type Server struct {
	cfg *config.Config
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start starts the server
func (s *Server) Start() {
	if err := Start(s.cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// Components are the stores, clients and services shared by the REST API
// and the background jobs.
type Components struct {
	Store       *store.GormStore
	Publisher   queue.Publisher
	Analysis    *service.AnalysisService
	Articles    *service.ArticleService
	Impacts     *service.ImpactService
	History     *service.HistoryService
	Maintenance *service.MaintenanceService
}

func (c *Components) Close() {
	c.Publisher.Close()
}

// NewComponents connects every backend named in cfg. Redis, Kafka and S3
// are optional and fall back to no-ops when not configured.
func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	compressor, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, err
	}

	impactStore := store.NewGormStore(db, compressor)
	if err := impactStore.Migrate(); err != nil {
		return nil, err
	}

	var articleCache cache.ArticleCache = cache.NopArticleCache{}
	if cfg.Redis.Addr != "" {
		if articleCache, err = cache.NewRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.Kafka.Brokers != "" {
		if publisher, err = queue.NewKafkaPublisher(cfg.Kafka); err != nil {
			return nil, err
		}
	}

	var archiver archive.Archiver = archive.Nop{}
	if cfg.S3.Bucket != "" {
		if archiver, err = archive.NewS3(ctx, cfg.S3); err != nil {
			publisher.Close()
			return nil, err
		}
	}

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	classifier, err := analysis.NewClassifier()
	if err != nil {
		publisher.Close()
		return nil, err
	}

	articles := service.NewArticleService(impactStore, articleCache, publisher)

	return &Components{
		Store:     impactStore,
		Publisher: publisher,
		Analysis: service.NewAnalysisService(service.AnalysisDeps{
			Store:      impactStore,
			Classifier: classifier,
			Extractor:  llm.NewExtractor(client, cfg.LLM.Timeout),
			Fetcher:    fetch.NewFetcher(fetchTimeout),
			Publisher:  publisher,
			Archiver:   archiver,
			Articles:   articles,
			Lease:      cfg.Jobs.AttemptLease,
		}),
		Articles:    articles,
		Impacts:     service.NewImpactService(impactStore, articles, publisher),
		History:     service.NewHistoryService(impactStore),
		Maintenance: service.NewMaintenanceService(impactStore, articleCache, cfg.Jobs.SweepGrace),
	}, nil
}

// Verifier picks the token verifier for cfg. It is nil when tokens cannot
// be checked.
func Verifier(cfg config.AuthConfig) (auth.Verifier, error) {
	switch {
	case cfg.Insecure:
		logrus.Warn("auth.insecure is set, bearer tokens are trusted as user ids")
		return auth.NullVerifier{}, nil
	case cfg.Secret != "":
		return auth.NewJWTVerifier(cfg.Secret, cfg.Issuer)
	case cfg.Required:
		return nil, errNoVerifier
	default:
		return nil, nil
	}
}

// NewGrpcServer returns a grpc server exposing the health service as SERVING.
func NewGrpcServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			grpcvalidator.UnaryServerInterceptor(),
			// log the request time
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return grpcServer, healthServer
}

// Start starts the grpc and http servers
func Start(cfg *config.Config) error {
	var err error

	config.SetupLogging(cfg)

	grpcPort := ":" + cfg.GrpcPort
	httpPort := ":" + cfg.HttpPort

	components, err := NewComponents(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	verifier, err := Verifier(cfg.Auth)
	if err != nil {
		return err
	}

	api, err := NewAPI(APIDeps{
		Analysis:     components.Analysis,
		Articles:     components.Articles,
		Impacts:      components.Impacts,
		History:      components.History,
		Store:        components.Store,
		Verifier:     verifier,
		AuthRequired: cfg.Auth.Required,
		Debug:        cfg.Debug,
	})
	if err != nil {
		return err
	}

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	grpcServer, healthServer := NewGrpcServer()

	apiMux := http.NewServeMux()
	openapiDocs := packr.NewBox("../../docs/v1")
	docsPath := "/v1/docs/"
	apiMux.Handle(docsPath, http.StripPrefix(docsPath, http.FileServer(openapiDocs)))
	apiMux.Handle("/", HttpRequestTimeMiddleware(api.Handler(), cfg.Debug))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	})

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           c.Handler(apiMux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	executor := jobs.NewTaskExecutor(nil, []jobs.CronJob{
		jobs.NewOrphanSweepTask(components.Maintenance, cfg.Jobs.SweepSchedule),
	})
	if err := executor.Run(); err != nil {
		return fmt.Errorf("start jobs: %w", err)
	}
	retrier := job.NewAttemptRetrier(components.Analysis, cfg.Jobs.RetryInterval, cfg.Jobs.MaxAttempts)

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		retrier.Run()
	}()

	wg.Add(1)
	// Start the rest server
	go func() {
		defer wg.Done()
		logrus.Info("starting rest server on: ", httpPort)
		logrus.Info("click on the following link to view the API documentation: http://localhost", httpPort, "/v1/docs/")
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest server: %v", err)
			}
		}
		logrus.Infof("rest server stopped")
	}()

	// Start the grpc server
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	time.Sleep(1 * time.Second)
	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	healthServer.Shutdown()
	executor.Stop()
	retrier.Stop()
	grpcServer.GracefulStop()
	err = restServer.Shutdown(context.Background())
	if err != nil {
		logrus.Errorf("error stopping rest server: %v", err)
	}

	wg.Wait()

	return nil
}
