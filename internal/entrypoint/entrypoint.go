package entrypoint

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/coursemarket/internal/audit"
	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	auditRepo "github.com/mrlokans/coursemarket/internal/database/audit"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/database/users"
	"github.com/mrlokans/coursemarket/internal/enrollment"
	http_controllers "github.com/mrlokans/coursemarket/internal/http"
	"github.com/mrlokans/coursemarket/internal/metrics"
	"github.com/mrlokans/coursemarket/internal/reconcile"
	"github.com/mrlokans/coursemarket/internal/scheduler"
	"github.com/mrlokans/coursemarket/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -2 is SIGINT, plain kill sends SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests first so in-flight handlers can still reach
	// the background services.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting coursemarket v%s", version)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.Open(cfg.Database, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		if err := m.InstrumentDB(db.DB); err != nil {
			log.Fatalf("Failed to instrument database: %v", err)
		}
	}

	if !cfg.Database.Transactional {
		log.Printf("WARNING: transactions are disabled, partial writes go to the compensation log")
	}
	client := store.New(db.DB, store.WithTransactions(cfg.Database.Transactional))
	comps := compensations.NewRepository(db.DB)

	catalogService := catalog.NewService(client, comps, cfg.Catalog)
	enrollmentService := enrollment.NewService(client, comps)
	auditService := audit.NewService(auditRepo.NewRepository(db.DB))
	reconciler := reconcile.NewService(client, comps, recorderFor(m), cfg.Maintenance)

	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
	authService.Subscribe(auditService.HandleAuthEvent)

	// sqlite sessions share the main database file; other drivers keep
	// sessions in memory.
	var sessionDB *sql.DB
	if db.IsSQLite() {
		sessionDB, err = db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}
	}
	sessionManager, err := auth.NewSessionManager(sessionDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}
	authMiddleware := auth.NewMiddleware(authService, sessionManager)
	authController := auth.NewAuthController(authService, sessionManager, cfg.Auth)

	var csrfSecret []byte
	if cfg.Auth.SessionSecret != "" {
		csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
		if err != nil {
			// Not hex, use as raw bytes
			csrfSecret = []byte(cfg.Auth.SessionSecret)
		}
	} else {
		log.Printf("WARNING: AUTH_SESSION_SECRET is not set, CSRF protection is disabled")
	}

	if hasAdmin, err := authService.HasAdmin(context.Background()); err == nil && !hasAdmin {
		log.Printf("No administrator found. Run '%s create-admin' to create one.", os.Args[0])
	}

	routerCfg := http_controllers.RouterConfig{
		Catalog:        catalogService,
		Enrollment:     enrollmentService,
		Users:          authService,
		Audit:          auditService,
		Reconciler:     reconciler,
		Database:       db,
		AuthController: authController,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Metrics:        m,
		Version:        version,
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var maintenance *scheduler.MaintenanceScheduler
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, cfg.Tasks)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		rec := taskRecorderFor(m)
		taskClient.Register(
			tasks.NewReconcileQueue(reconciler, rec),
			tasks.NewCleanupAuditEventsQueue(auditService, rec),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Only a live queue may be stored in the interface field; a nil
		// *tasks.Client would read as non-nil there.
		routerCfg.TaskQueue = taskClient

		if cfg.Maintenance.Enabled {
			maintenance = scheduler.NewMaintenanceScheduler(taskClient, cfg.Maintenance, cfg.Audit)
			if err := maintenance.Start(taskCtx); err != nil {
				log.Fatalf("Failed to start maintenance scheduler: %v", err)
			}
		}
	} else if cfg.Maintenance.Enabled {
		log.Printf("WARNING: maintenance needs the task queue; set TASKS_ENABLED=true or run '%s reconcile'", os.Args[0])
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		authController.Stop()
		auditService.Wait()
	}

	Serve(router, cfg, onShutdown)
}

// recorderFor keeps a nil *metrics.Metrics out of the reconcile.Recorder
// interface.
func recorderFor(m *metrics.Metrics) reconcile.Recorder {
	if m == nil {
		return nil
	}
	return m
}

func taskRecorderFor(m *metrics.Metrics) tasks.Recorder {
	if m == nil {
		return nil
	}
	return m
}
