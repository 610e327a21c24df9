package routes

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"invoice-bookkeeping-backend/internal/config"
	handler "invoice-bookkeeping-backend/internal/handlers"
	"invoice-bookkeeping-backend/internal/idempotency"
	"invoice-bookkeeping-backend/internal/logger"
	"invoice-bookkeeping-backend/internal/metrics"
	"invoice-bookkeeping-backend/internal/repository"
	"invoice-bookkeeping-backend/internal/services/importer"
	"invoice-bookkeeping-backend/internal/services/invoices"
	"invoice-bookkeeping-backend/internal/services/matching"
	"invoice-bookkeeping-backend/internal/services/query"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the process-wide collaborators the routes are built from.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Idempotency idempotency.Store
	Stats       *stats.Aggregator
}

// NewRouter builds the engine with the shared middleware stack and every route.
func NewRouter(db *gorm.DB, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(deps.Logger))
	r.Use(logger.GinMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinMiddleware())
	}
	if origins := deps.Config.HTTP.CORSAllowOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", idempotency.Header, logger.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	RegisterRoutes(r, db, deps)
	return r
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	cfg := deps.Config
	log := deps.Logger

	agg := deps.Stats
	if agg == nil {
		agg = stats.NewAggregator(db, log,
			stats.WithMetrics(deps.Metrics),
			stats.WithTolerance(cfg.Stats.DriftTolerance),
		)
	}
	invoiceService := invoices.NewService(db, agg, log, invoices.WithMetrics(deps.Metrics))
	queryEngine := query.NewEngine(db, query.WithPageSizes(cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize))
	resolver := matching.NewResolver(db, log)
	csvImporter := importer.New(db, resolver, agg, log, importer.WithMetrics(deps.Metrics))

	invoiceHandler := handler.NewInvoiceHandler(invoiceService, queryEngine, csvImporter, cfg.HTTP.MaxUploadBytes)
	statsHandler := handler.NewStatsHandler(agg, invoiceService)
	supplierHandler := handler.NewSupplierHandler(repository.NewSupplierRepository(db), resolver)
	healthHandler := handler.NewHealthHandler(db)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")
	admin := AdminAuth(cfg.HTTP.AdminToken)

	// Health check
	api.GET("/health", healthHandler.Health)

	// Invoice routes
	inv := api.Group("/invoices")
	{
		if deps.Idempotency != nil {
			inv.POST("", idempotency.Middleware(deps.Idempotency, cfg.Idempotency.TTL), invoiceHandler.Create)
		} else {
			inv.POST("", invoiceHandler.Create)
		}
		inv.GET("/paginated", admin, invoiceHandler.Paginated)
		inv.POST("/upload", admin, invoiceHandler.Upload)
		inv.GET("", admin, invoiceHandler.List)
		inv.GET("/:id", admin, invoiceHandler.Get)
		inv.PATCH("/:id", admin, invoiceHandler.Update)
		inv.DELETE("/:id", admin, invoiceHandler.Delete)
	}

	st := api.Group("/stats", admin)
	{
		st.GET("", statsHandler.Get)
		st.POST("/reconcile", statsHandler.Reconcile)
		st.GET("/reconciliations", statsHandler.History)
	}

	// Supplier routes: names and suggestions feed the public form
	sup := api.Group("/suppliers")
	{
		sup.GET("/list", supplierHandler.Names)
		sup.GET("/suggest", supplierHandler.Suggest)
		sup.GET("", admin, supplierHandler.List)
		sup.POST("", admin, supplierHandler.Create)
		sup.PATCH("/:id", admin, supplierHandler.Rename)
		sup.DELETE("/:id", admin, supplierHandler.Delete)
	}
}

// AdminAuth requires "Authorization: Bearer <token>". An empty token turns
// the guard off.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "UNAUTHORIZED",
				"message": "admin token required",
			})
			return
		}
		c.Next()
	}
}
