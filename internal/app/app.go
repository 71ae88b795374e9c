package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/wasteman/internal/account"
	"github.com/hitoshi/wasteman/internal/asset"
	"github.com/hitoshi/wasteman/internal/auth"
	"github.com/hitoshi/wasteman/internal/config"
	"github.com/hitoshi/wasteman/internal/database"
	"github.com/hitoshi/wasteman/internal/handler"
	"github.com/hitoshi/wasteman/internal/logger"
	"github.com/hitoshi/wasteman/internal/mailer"
	"github.com/hitoshi/wasteman/internal/metrics"
	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/otp"
	"github.com/hitoshi/wasteman/internal/planner"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/security"
	"github.com/hitoshi/wasteman/internal/solver"
	"github.com/hitoshi/wasteman/internal/stats"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（ワンタイムコードストア）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	tokenRepo := repository.NewPostgresRefreshTokenRepo(db)
	municipalityRepo := repository.NewPostgresMunicipalityRepo(db)
	binRepo := repository.NewPostgresBinRepo(db)
	vehicleRepo := repository.NewPostgresVehicleRepo(db)
	landfillRepo := repository.NewPostgresLandfillRepo(db)
	scenarioRepo := repository.NewPostgresScenarioRepo(db)
	solutionRepo := repository.NewPostgresSolutionRepo(db)

	// 4. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	avatarFetcher := security.NewAvatarFetcher(ssrfGuard, cfg.AvatarFetchTimeout, cfg.AvatarMaxSize)
	sanitizer := security.NewDescriptionSanitizer()

	// 6. ドメインサービスの初期化
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	otpStore := otp.NewRedisStore(redisClient, cfg.OTPTTL, cfg.OTPMaxAttempts)
	otpMailer := mailer.NewLogMailer()

	authService := auth.NewService(userRepo, tokenRepo, tokenManager, otpStore, otpMailer)
	authService.SetReuseRecorder(collector)

	accountService := account.NewService(userRepo, avatarFetcher)
	assetService := asset.NewService(municipalityRepo, binRepo, vehicleRepo, landfillRepo, sanitizer)

	solverClient := solver.NewClient(
		&http.Client{Timeout: cfg.SolverTimeout},
		slog.Default(),
		cfg.SolverURL,
	)
	plannerService := planner.NewService(
		scenarioRepo, solutionRepo,
		binRepo, vehicleRepo, landfillRepo, municipalityRepo,
		solverClient,
	)

	statsService := stats.NewService(db)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromLimits(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenParser:       tokenManager,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),
		Metrics:     collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:       cfg.CookieDomain,
			CookieSecure:       cfg.CookieSecure,
			AccessTokenMaxAge:  int(cfg.AccessTokenTTL.Seconds()),
			RefreshTokenMaxAge: int(cfg.RefreshTokenTTL.Seconds()),
		},

		AccountService:  accountService,
		PasswordChanger: authService,

		AssetService:   assetService,
		PlannerService: plannerService,
		StatsService:   statsService,
	}

	router := handler.NewRouter(deps)

	// 8. メトリクスサーバーの起動（Prometheusスクレイプ用の別ポート）
	metricsServer := startMetricsServer(cfg.MetricsPort, registry)
	defer shutdownServer(metricsServer, "metrics server")

	// 9. APIサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れリフレッシュトークンの定期クリーンアップを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. メトリクスコレクターとスクレイプエンドポイント
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	metricsServer := startMetricsServer(cfg.MetricsPort, registry)
	defer shutdownServer(metricsServer, "metrics server")

	tokenRepo := repository.NewPostgresRefreshTokenRepo(db)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.TokenCleanupInterval),
	)

	runTokenCleanup(ctx, tokenRepo, collector, cfg.TokenCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runTokenCleanup は期限切れリフレッシュトークンの削除を定期実行する。
// 起動直後に1回実行し、以降はintervalごとに実行する。ctxのキャンセルで停止する。
func runTokenCleanup(ctx context.Context, tokenRepo repository.RefreshTokenRepository, collector metrics.MetricsCollector, interval time.Duration) {
	cleanup := func() {
		deleted, err := tokenRepo.DeleteExpired(ctx, time.Now())
		if err != nil {
			slog.Error("token cleanup failed", slog.String("error", err.Error()))
			return
		}
		collector.RecordTokensCleaned(deleted)
		slog.Info("expired refresh tokens cleaned", slog.Int64("deleted", deleted))
	}

	cleanup()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// startMetricsServer はPrometheusスクレイプ用のHTTPサーバーをバックグラウンドで起動する。
func startMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: metrics.SetupMetricsRoute(gatherer),
	}

	go func() {
		slog.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	return server
}

// shutdownServer はHTTPサーバーを停止する。シャットダウンパスで使用する。
func shutdownServer(server *http.Server, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down "+name, slog.String("error", err.Error()))
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
