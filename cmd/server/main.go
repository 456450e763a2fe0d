// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"secure-file-service/config"
	"secure-file-service/internal/crypto"
	"secure-file-service/internal/handler"
	"secure-file-service/internal/infra"
	"secure-file-service/internal/middleware"
	"secure-file-service/internal/repository"
	"secure-file-service/internal/usecase"
	"secure-file-service/migrations"
)

// sealer はラップ鍵の保護に使うクライアント。
type sealer interface {
	usecase.KeySealer
	Close() error
}

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	shutdownTracer, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, infra.ParseLevel(cfg.LogLevel))

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	// SQLiteはローカル開発用のため起動時にスキーマを作成する
	if infra.Dialect(cfg.DatabaseURL) == "sqlite" {
		if err := migrateSQLite(ctx, db); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// ラップ鍵の保護（KMS未設定時は保存前の値をそのまま使う）
	var keySealer sealer = infra.NoopSealer{}
	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			slog.Error("failed to init KMS client", "error", err)
			os.Exit(1)
		}
		keySealer = kmsClient
	} else {
		slog.Warn("KMS_KEY_NAME is not set, wrapped keys are stored without envelope sealing")
	}
	defer func() {
		if closeErr := keySealer.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()

	// 暗号文の保存先
	var blobs usecase.BlobStore = repository.NewBlobRepository(db)
	if cfg.S3Bucket != "" {
		s3Store, err := infra.NewS3BlobStore(ctx, cfg)
		if err != nil {
			slog.Error("failed to init S3 blob store", "error", err)
			os.Exit(1)
		}
		blobs = s3Store
	}

	// 鍵カプセル化方式は起動時に一度だけ決定する
	primary, err := crypto.DetectCapability(ctx, cfg.KEMAlgorithm)
	if err != nil {
		slog.Error("failed to select KEM capability", "error", err)
		os.Exit(1)
	}
	kem := crypto.NewKeyEncapsulationService(primary, crypto.NewMLKEMCapability(), crypto.NewRSACapability())
	slog.Info("key encapsulation ready", "algorithm", kem.Algorithm())

	// DI
	fileRepo := repository.NewFileRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	trail := usecase.NewAuditTrail(auditRepo)
	fileService := usecase.NewFileService(
		usecase.NewFileVault(fileRepo, blobs, keySealer),
		usecase.NewAccessControlManager(fileRepo),
		usecase.NewHoneyfileTripwire(fileRepo, trail, auditRepo),
		trail,
		userRepo,
		auditRepo,
	)
	exchangeService := usecase.NewExchangeService(kem, crypto.NewEphemeralKeyStore(kem, cfg.EphemeralKeyTTL))

	router := handler.NewRouter(handler.Handlers{
		Files:  handler.NewFileHandler(fileService, cfg.MaxUploadBytes),
		Users:  handler.NewUserHandler(usecase.NewUserService(userRepo, kem)),
		Crypto: handler.NewCryptoHandler(exchangeService),
	}, middleware.NewAuthenticator(cfg.JWTSecret), cfg)

	// サーバー起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func migrateSQLite(ctx context.Context, db *gorm.DB) error {
	fsys, err := migrations.For("sqlite")
	if err != nil {
		return err
	}
	n, err := usecase.NewMigrationService(repository.NewMigrationRepository(db), db, fsys).ApplyMigrations(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "applied migrations", "count", n)
	}
	return nil
}
