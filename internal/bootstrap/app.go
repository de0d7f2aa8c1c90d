package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-console/internal/backend"
	"invoice-console/internal/dashboard"
	"invoice-console/internal/reviews"
	"invoice-console/internal/shared/config"
	"invoice-console/internal/shared/server"
	"invoice-console/internal/shared/storage/db"
	"invoice-console/internal/shared/telemetry"
	"invoice-console/internal/submissions"
)

// App holds shared dependencies and the three console views.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Backend     backend.Client
	History     reviews.History
	Dashboard   *dashboard.View
	Reviews     *reviews.Queue
	Submissions *submissions.View
}

// Build prepares dependencies and wires routes. Views are not polling until Start.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpClient := backend.NewHTTPClient(ctx, backend.AuthConfig{
		Token:        cfg.BackendToken,
		ClientID:     cfg.BackendClientID,
		ClientSecret: cfg.BackendClientSecret,
		TokenURL:     cfg.BackendTokenURL,
		Scopes:       cfg.BackendScopes,
	}, cfg.BackendTimeout)
	client := backend.New(cfg.BackendURL, httpClient)

	var history reviews.History
	if sqlDB != nil {
		history = &reviews.PGHistory{DB: sqlDB}
	} else {
		history = reviews.NewMemoryHistory()
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Backend:   client,
		History:   history,
		Dashboard: dashboard.NewView(client, cfg.PollInterval),
		Reviews: reviews.NewQueue(client, reviews.Options{
			PollInterval:       cfg.PollInterval,
			AcceptRefreshDelay: cfg.AcceptRefreshDelay,
			History:            history,
		}),
		Submissions: submissions.NewView(client, cfg.ReviewRedirectDelay),
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Handlers: []server.RouteRegistrar{
			dashboard.NewHandler(app.Dashboard),
			reviews.NewHandler(app.Reviews),
			submissions.NewHandler(app.Submissions),
		},
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":         cfg.Env,
		"backend_url": cfg.BackendURL,
		"history":     historyKind(sqlDB),
		"poll":        cfg.PollInterval.String(),
	})
	return app, nil
}

// Start begins polling in the dashboard and review queue views.
func (a *App) Start(ctx context.Context) {
	a.Dashboard.Start(ctx)
	a.Reviews.Start(ctx)
}

// Close stops every view's background work and releases the database.
func (a *App) Close() error {
	a.Dashboard.Close()
	a.Reviews.Close()
	a.Submissions.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{
				"error":   err.Error(),
				"history": "memory",
			})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func historyKind(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}
