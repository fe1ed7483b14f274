package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// HealthChecker はヘルスチェックで疎通確認するインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.HTTPMetricsRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	Mailer      MailSender

	// ドメイン
	UserService    UserServiceInterface
	ContactService ContactServiceInterface
	ImageService   ImageServiceInterface
	CommentService CommentServiceInterface
	RateService    RateServiceInterface
	TagService     TagServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// 認証ルート（/api/auth/*）はIP単位のレート制限、認証必須ルートは
// トークン認証とユーザー単位のレート制限を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Mailer)
	userHandler := NewUserHandler(deps.UserService)
	contactHandler := NewContactHandler(deps.ContactService)
	imageHandler := NewImageHandler(deps.ImageService)
	commentHandler := NewCommentHandler(deps.CommentService)
	rateHandler := NewRateHandler(deps.RateService)
	tagHandler := NewTagHandler(deps.TagService)

	// ロールゲート
	adminOnly := middleware.NewRoleMiddleware(auth.NewRoleGate(model.RoleAdministrator))
	moderatorOrAbove := middleware.NewRoleMiddleware(
		auth.NewRoleGate(model.RoleModerator, model.RoleAdministrator))

	// --- 運用エンドポイント（認証・レート制限の外側） ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート（IP単位のレート制限） ---

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Get("/refresh_token", authHandler.Refresh)
		r.Post("/verification_email", authHandler.RequestVerificationEmail)
		r.Get("/confirm_email/{token}", authHandler.ConfirmEmail)
		r.Post("/password_reset_email", authHandler.RequestPasswordReset)
		r.Get("/reset_password/{token}", authHandler.ResetPassword)
		r.Patch("/set_password/{token}", authHandler.SetPassword)

		// ログアウトだけは有効なアクセストークンが必要
		r.With(middleware.NewAuthMiddleware(deps.UserResolver)).
			Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: トークン認証 → ユーザー単位のレート制限
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)
			r.Patch("/me/avatar", userHandler.UpdateAvatar)
			r.Get("/{username}", userHandler.GetByUsername)

			// 管理者専用
			r.With(adminOnly).Patch("/{username}/set_role", userHandler.SetRole)
			r.With(adminOnly).Patch("/{username}", userHandler.Activate)
			r.With(adminOnly).Delete("/{username}", userHandler.Inactivate)
		})

		// 連絡先管理
		r.Route("/api/contacts", func(r chi.Router) {
			r.Get("/", contactHandler.List)
			r.Post("/", contactHandler.Create)
			r.Get("/birthdays", contactHandler.Birthdays)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contactHandler.Get)
				r.Put("/", contactHandler.Update)
				r.Delete("/", contactHandler.Delete)
			})
		})

		// 画像管理
		r.Route("/api/images", func(r chi.Router) {
			r.Get("/", imageHandler.List)
			r.Post("/", imageHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", imageHandler.Get)
				r.Patch("/", imageHandler.UpdateDescription)
				r.Delete("/", imageHandler.Delete)
				r.Post("/transform", imageHandler.Transform)
				r.Get("/qr_code", imageHandler.QRCode)

				// タグ付け
				r.Post("/tags", imageHandler.AddTag)
				r.Delete("/tags/{title}", imageHandler.RemoveTag)

				// コメント
				r.Get("/comments", commentHandler.ListByImage)
				r.Post("/comments", commentHandler.Create)

				// 評価
				r.Get("/rates", rateHandler.ListByImage)
				r.Post("/rates", rateHandler.Create)
				r.Get("/rates/avg", rateHandler.AverageByImage)
			})
		})

		// コメント管理
		r.Route("/api/comments", func(r chi.Router) {
			r.Get("/", commentHandler.ListMine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/replies", commentHandler.ListReplies)
				r.Put("/", commentHandler.Update)
				r.With(moderatorOrAbove).Delete("/", commentHandler.Delete)
			})
		})

		// 評価管理
		r.Route("/api/rates", func(r chi.Router) {
			r.Get("/", rateHandler.ListMine)
			r.Get("/ranked", rateHandler.Ranked)

			// モデレーター以上
			r.With(moderatorOrAbove).Get("/user/{id}", rateHandler.ListByUser)
			r.With(moderatorOrAbove).Delete("/{id}", rateHandler.Delete)
		})

		// タグ管理
		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", tagHandler.List)
			r.Get("/{title}", tagHandler.GetByTitle)

			// 管理者専用
			r.With(adminOnly).Put("/{title}", tagHandler.UpdateTitle)
			r.With(adminOnly).Delete("/{title}", tagHandler.Delete)
		})
	})

	return r
}
