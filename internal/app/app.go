// Package app はアプリケーションの初期化と起動を行う。
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
	xrate "golang.org/x/time/rate"

	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/cache"
	"github.com/hitoshi/photoshare/internal/comment"
	"github.com/hitoshi/photoshare/internal/config"
	"github.com/hitoshi/photoshare/internal/contact"
	"github.com/hitoshi/photoshare/internal/database"
	"github.com/hitoshi/photoshare/internal/handler"
	"github.com/hitoshi/photoshare/internal/image"
	"github.com/hitoshi/photoshare/internal/logger"
	"github.com/hitoshi/photoshare/internal/mail"
	"github.com/hitoshi/photoshare/internal/metrics"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/qr"
	"github.com/hitoshi/photoshare/internal/rate"
	"github.com/hitoshi/photoshare/internal/repository"
	"github.com/hitoshi/photoshare/internal/security"
	"github.com/hitoshi/photoshare/internal/tag"
	"github.com/hitoshi/photoshare/internal/upload"
	"github.com/hitoshi/photoshare/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

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
			port = "8080"
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
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisへの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
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

	// 2. Redis接続
	redisStore, err := cache.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis store: %w", err)
	}
	defer redisStore.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := redisStore.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// キャッシュのヒット・ミスを種別ごとに計測する
	tokenStore := metrics.NewInstrumentedStore(redisStore, collector, "token")
	userStore := metrics.NewInstrumentedStore(redisStore, collector, "user")
	imageStore := metrics.NewInstrumentedStore(redisStore, collector, "image")

	// 4. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	imageRepo := repository.NewPostgresImageRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	rateRepo := repository.NewPostgresRateRepo(db)

	// 5. 認証基盤の初期化
	// シークレットは起動ごとに再生成され、既存トークンはすべて失効する
	secret, err := auth.NewSecret(cfg.SecretKeyLength)
	if err != nil {
		return fmt.Errorf("failed to generate signing secret: %w", err)
	}
	codec := auth.NewCodec(secret)
	blacklist := auth.NewTokenBlacklist(tokenStore, codec)
	userCache := auth.NewUserCache(userStore, cfg.CacheExpire)
	authService := auth.NewService(userRepo, codec, blacklist, userCache)

	// 6. 外部サービスクライアントの初期化
	cld, err := upload.NewCloudinary(
		cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	uploader := upload.NewInstrumented(cld, collector)

	mailer, err := mail.NewMailer(mail.SMTPConfig{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	// 7. ドメインサービスの初期化
	tagService := tag.NewService(tagRepo)
	imageService := image.NewService(
		imageRepo, tagService, uploader, qr.NewGenerator(),
		imageStore, cfg.CacheExpire, cfg.BaseURL,
	)
	commentService := comment.NewService(commentRepo, imageRepo, security.NewContentSanitizer())
	rateService := rate.NewService(rateRepo, imageRepo)
	contactService := contact.NewService(contactRepo)
	userService := user.NewService(userRepo, userCache, uploader)

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		HealthChecker:  db,
		MetricsHandler: metrics.SetupMetricsRoute(registry),

		AuthService: authService,
		Mailer:      mailer,

		UserService:    userService,
		ContactService: contactService,
		ImageService:   imageService,
		CommentService: commentService,
		RateService:    rateService,
		TagService:     tagService,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
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

// rateLimiterConfig はConfigのreq/min単位の設定をreq/sec単位に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		limiterCfg.GeneralRate = rateLimit(cfg.RateLimitGeneral)
		limiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		limiterCfg.AuthRate = rateLimit(cfg.RateLimitAuth)
		limiterCfg.AuthBurst = cfg.RateLimitAuth
	}
	return limiterCfg
}

// rateLimit はreq/minをreq/secのレートに変換する。
func rateLimit(perMinute int) xrate.Limit {
	return xrate.Limit(float64(perMinute) / 60.0)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
