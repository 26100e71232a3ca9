package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blinkd/internal/metrics"
	"github.com/hitoshi/blinkd/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MetricsRecorder   middleware.HTTPMetricsRecorder
	Gatherer          prometheus.Gatherer

	// サービス
	AccountService AccountServiceInterface
	ExportService  ExportServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → CORS → Logging → Metrics → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
// すべての変更系操作はGETとPOSTの両方で受け付ける（旧クライアント互換）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}

	accountHandler := NewAccountHandler(deps.AccountService)
	exportHandler := NewExportHandler(deps.ExportService)

	// --- 運用エンドポイント（レート制限の外） ---

	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIエンドポイント ---

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 登録は専用レート制限を追加
		registerChain := func(r chi.Router) chi.Router {
			if deps.RateLimiter != nil {
				return r.With(deps.RateLimiter.RegisterMiddleware())
			}
			return r
		}
		registerChain(r).Get("/register", accountHandler.Register)
		registerChain(r).Post("/register", accountHandler.Register)

		// アカウント引き継ぎ
		r.Get("/export", exportHandler.Export)
		r.Post("/export", exportHandler.Export)
		r.Get("/import", exportHandler.Import)
		r.Get("/importcheck", exportHandler.ImportCheck)

		// スコア管理
		r.Get("/all", accountHandler.All)
		r.Get("/blink", accountHandler.Blink)
		r.Post("/blink", accountHandler.Blink)
		r.Get("/sync", accountHandler.Sync)
		r.Post("/sync", accountHandler.Sync)

		// リセット
		r.Get("/resettrees/{id}", accountHandler.ResetTrees)
		r.Post("/resettrees/{id}", accountHandler.ResetTrees)
		r.Get("/reset", accountHandler.Reset)
		r.Post("/reset", accountHandler.Reset)
	})

	return r
}

// Health はヘルスチェック応答を返す。
// 例外的にJSONではなくプレーンテキストで応答する。
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
