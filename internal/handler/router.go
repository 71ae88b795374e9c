package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wasteman/internal/metrics"
	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenParser       middleware.TokenParser
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アカウント（ユーザー管理・プロフィール）
	AccountService  AccountServiceInterface
	PasswordChanger PasswordChanger

	// 資産管理
	AssetService AssetServiceInterface

	// 収集計画
	PlannerService PlannerServiceInterface

	// ダッシュボード統計
	StatsService StatsServiceInterface
}

// AccountServiceInterface はユーザー管理とプロフィールの両ハンドラーが
// 必要とするサービスインターフェース。account.Serviceが実装する。
type AccountServiceInterface interface {
	UserServiceInterface
	ProfileServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → CSRF → Logging → (Auth → RateLimit(General) → RequireRole)
//
// 認証系ルート（ログイン・トークン更新・ワンタイムコード）は認証ミドルウェアの外に置き、
// クライアントIP単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AccountService, deps.AuthConfig, deps.Metrics)
	userHandler := NewUserHandler(deps.AccountService)
	profileHandler := NewProfileHandler(deps.AccountService, deps.PasswordChanger)
	assetHandler := NewAssetHandler(deps.AssetService)
	scenarioHandler := NewScenarioHandler(deps.PlannerService, deps.Metrics)
	adminHandler := NewAdminHandler(deps.StatsService, deps.AccountService)

	authMW := middleware.NewAuthMiddleware(deps.TokenParser)
	requireAdmin := middleware.RequireRole(model.RoleAdmin)
	requirePlanner := middleware.RequireRole(model.RolePlanner, model.RoleAdmin)

	// ヘルスチェックとCSRFトークン取得は制限なし
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証不要のルート（クライアントIP単位のレート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/refresh", authHandler.Refresh)
		r.Post("/api/auth/activate/request", authHandler.RequestActivation)
		r.Post("/api/auth/activate/confirm", authHandler.ConfirmActivation)
		r.Post("/api/auth/reset/request", authHandler.RequestPasswordReset)
		r.Post("/api/auth/reset/confirm", authHandler.ConfirmPasswordReset)

		// ログアウトはトークンの状態に関わらず成功させるため認証ミドルウェアの外に置く
		r.Post("/api/auth/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(authMW)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// 本人プロフィール（全役割）
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Put("/", profileHandler.UpdateProfile)
			r.Put("/password", profileHandler.ChangePassword)
			r.Post("/image", profileHandler.UploadImage)
			r.Get("/image", profileHandler.GetImage)
		})

		// 資産参照（プランナー以上）。シナリオ作成画面で使用する
		r.Group(func(r chi.Router) {
			r.Use(requirePlanner)

			r.Get("/api/municipalities", assetHandler.ListMunicipalities)
			r.Get("/api/municipalities/{id}", assetHandler.GetMunicipality)
			r.Get("/api/bins", assetHandler.ListBins)
			r.Get("/api/bins/available", scenarioHandler.ListAvailableBins)
			r.Get("/api/bins/{id}", assetHandler.GetBin)
			r.Get("/api/vehicles", assetHandler.ListVehicles)
			r.Get("/api/vehicles/{id}", assetHandler.GetVehicle)
			r.Get("/api/landfills", assetHandler.ListLandfills)
			r.Get("/api/landfills/{id}", assetHandler.GetLandfill)

			// 収集シナリオとソリューション
			r.Route("/api/scenarios", func(r chi.Router) {
				r.Get("/", scenarioHandler.ListScenarios)
				r.Post("/", scenarioHandler.CreateScenario)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", scenarioHandler.GetScenario)
					r.Put("/", scenarioHandler.UpdateScenario)
					r.Delete("/", scenarioHandler.DeleteScenario)
					r.Post("/solve", scenarioHandler.Solve)
					r.Get("/solution", scenarioHandler.GetScenarioSolution)
				})
			})

			r.Get("/api/solutions", scenarioHandler.ListSolutions)
			r.Get("/api/solutions/{id}", scenarioHandler.GetSolution)
		})

		// 資産管理と運用（管理者専用）
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/api/municipalities", assetHandler.CreateMunicipality)
			r.Put("/api/municipalities/{id}", assetHandler.UpdateMunicipality)
			r.Delete("/api/municipalities/{id}", assetHandler.DeleteMunicipality)

			r.Post("/api/bins", assetHandler.CreateBin)
			r.Put("/api/bins/{id}", assetHandler.UpdateBin)
			r.Delete("/api/bins/{id}", assetHandler.DeleteBin)

			r.Post("/api/vehicles", assetHandler.CreateVehicle)
			r.Put("/api/vehicles/{id}", assetHandler.UpdateVehicle)
			r.Delete("/api/vehicles/{id}", assetHandler.DeleteVehicle)

			r.Post("/api/landfills", assetHandler.CreateLandfill)
			r.Put("/api/landfills/{id}", assetHandler.UpdateLandfill)
			r.Delete("/api/landfills/{id}", assetHandler.DeleteLandfill)

			// ユーザー管理
			r.Route("/api/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Post("/", userHandler.CreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.GetUser)
					r.Put("/", userHandler.UpdateUser)
					r.Delete("/", userHandler.DeleteUser)
					r.Post("/archive", userHandler.ArchiveUser)
					r.Post("/restore", userHandler.RestoreUser)
				})
			})

			// ダッシュボード
			r.Get("/api/admin/stats", adminHandler.Dashboard)
			r.Get("/api/admin/activity", adminHandler.Activity)
		})
	})

	return r
}
