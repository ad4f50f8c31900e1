package server

import (
	"log"
	"net/http"
	"time"

	"github.com/diewo77/retail-ops/internal/config"
	"github.com/diewo77/retail-ops/internal/handlers"
	"github.com/diewo77/retail-ops/internal/httpx"
	"github.com/diewo77/retail-ops/internal/services"
	"github.com/diewo77/retail-ops/internal/store"

	"gorm.io/gorm"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	gateway := store.New(db)
	coordinator := services.NewSettlementCoordinator(gateway)
	credit := services.NewCreditAccountManager(gateway, cfg)

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		// Perform a lightweight DB check (SELECT 1) - ignore detailed errors in body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Product endpoints. List/Create via /products; update/delete/adjust via
	// dedicated paths for simplicity.
	ph := handlers.NewProductHandler(db, gateway)
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			ph.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/products/update", ph.Update)
	mux.HandleFunc("/products/delete", ph.Delete)
	mux.HandleFunc("/products/adjust", ph.Adjust)

	// Customer endpoints
	ch := handlers.NewCustomerHandler(db)
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ch.List(w, r)
		case http.MethodPost:
			ch.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/customers/get", ch.Get)

	// Gift card endpoints
	gh := handlers.NewGiftCardHandler(db, gateway)
	mux.HandleFunc("/giftcards", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gh.List(w, r)
		case http.MethodPost:
			gh.Issue(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})

	// Sale / settlement endpoints
	sh := handlers.NewSaleHandler(db, coordinator)
	mux.HandleFunc("/sales", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sh.List(w, r)
		case http.MethodPost:
			sh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/sales/get", sh.Get)
	mux.HandleFunc("/sales/return", sh.Return)
	mux.HandleFunc("/sales/advance", sh.Advance)
	mux.HandleFunc("/sales/pay", sh.Pay)

	// Statement endpoints
	sth := handlers.NewStatementHandler(db, credit)
	mux.HandleFunc("/statements", sth.List)
	mux.HandleFunc("/statements/pay", sth.Pay)
	mux.HandleFunc("/statements/remind", sth.Remind)

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
