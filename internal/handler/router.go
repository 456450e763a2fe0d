package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"secure-file-service/config"
	"secure-file-service/internal/middleware"
	"secure-file-service/pkg/httputil"
)

// Handlers はルーターに登録するハンドラの集合。
type Handlers struct {
	Files  *FileHandler
	Users  *UserHandler
	Crypto *CryptoHandler
}

// NewRouter はルーターを生成する。/healthz 以外は認証が必要。
func NewRouter(h Handlers, auth *middleware.Authenticator, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Route("/files", func(r chi.Router) {
			r.Post("/", h.Files.Upload)
			r.Get("/", h.Files.List)
			r.Get("/shared", h.Files.ListShared)
			r.Route("/{file_id}", func(r chi.Router) {
				r.Get("/", h.Files.Download)
				r.Delete("/", h.Files.Delete)
				r.Get("/key", h.Files.Key)
				r.Post("/grants", h.Files.Share)
				r.Get("/grants", h.Files.ListGrants)
				r.Delete("/grants/{grantee_id}", h.Files.Revoke)
			})
		})

		r.Get("/honeyfiles/stats", h.Files.HoneyfileStats)
		r.Get("/audit", h.Files.Audit)
		r.Get("/audit/files/{file_id}", h.Files.FileAudit)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.Users.Search)
			r.Put("/me/key", h.Users.RegisterKey)
			r.Get("/{user_id}/key", h.Users.PublicKey)
		})

		r.Route("/crypto", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.ExchangeRateLimit, exchangeBurst(cfg.ExchangeRateLimit))).
				Post("/keypair", h.Crypto.IssueKeyPair)
			r.Post("/encrypt", h.Crypto.Encrypt)
			r.Post("/decrypt", h.Crypto.Decrypt)
		})
	})

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, cfg.OtelServiceName)
	}
	return r
}

func exchangeBurst(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}
