package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiKitchenCost/internal/config"
	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory"
	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory/events"
	"github.com/nemonet1337/zaiKitchenCost/pkg/inventory/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML設定ファイルのパス（省略時は環境変数のみ）")
	flag.Parse()

	// 設定読み込み
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("設定読み込みに失敗しました: ", err)
	}

	// ログ設定
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました: ", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// データベース接続
	store, err := storage.NewPostgreSQLStorage(ctx, cfg.DSN(), storage.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger.Named("storage"))
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// イベント発行者
	publisher, closePublisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		logger.Fatal("イベント発行者の初期化に失敗しました", zap.Error(err))
	}
	defer closePublisher()

	// メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := inventory.NewMetrics(registry)

	// 原価計算マネージャー初期化
	manager := inventory.NewManager(store, publisher, logger, metrics, cfg.Manager())

	// HTTPハンドラー設定
	handlers := NewHandlers(manager, logger.Named("http"), cfg.API.MaxUploadMB)
	router := setupRouter(handlers, registry, cfg.API)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("原価計算APIサーバーを開始します", zap.Int("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newPublisher selects the event backend; the returned func releases it
// イベント配信先を選択
func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (inventory.EventPublisher, func(), error) {
	if cfg.Backend != "redis" {
		return inventory.NewLogPublisher(logger), func() {}, nil
	}
	publisher, err := events.NewRedisPublisher(ctx, cfg.RedisURL, cfg.Channel, logger)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Redis接続のクローズに失敗しました", zap.Error(err))
		}
	}, nil
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, registry *prometheus.Registry, cfg config.APIConfig) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1/tenants/{tenantId}").Subrouter()

	// レシピ展開
	api.HandleFunc("/recipes/{recipeId}/explode", handlers.ExplodeRecipe).Methods("POST")

	// 店舗台帳
	api.HandleFunc("/stores/{storeId}/theoretical-runs", handlers.CreateTheoreticalRun).Methods("POST")
	api.HandleFunc("/stores/{storeId}/usage", handlers.GetUsage).Methods("GET")
	api.HandleFunc("/stores/{storeId}/on-hand", handlers.GetOnHand).Methods("GET")
	api.HandleFunc("/stores/{storeId}/valuation", handlers.GetValuation).Methods("GET")
	api.HandleFunc("/stores/{storeId}/variance", handlers.GetVariance).Methods("GET")

	// 仕入先品目照合
	api.HandleFunc("/vendor-match", handlers.MatchVendorProducts).Methods("POST")
	api.HandleFunc("/vendors/{vendorId}/order-guides", handlers.UploadOrderGuide).Methods("POST")

	if cfg.EnableCORS {
		router.Use(corsMiddleware)
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger, newRequestMetrics(registry)))

	return router
}

// corsMiddleware allows cross-origin requests (development use)
// CORS設定（開発用）
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestMetrics counts HTTP requests by route template
type requestMetrics struct {
	duration *prometheus.HistogramVec
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kitchen_cost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTPリクエストの処理時間",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.duration)
	}
	return m
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger, metrics *requestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// リクエスト処理
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			elapsed := time.Since(start)
			metrics.duration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
