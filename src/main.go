package main

import (
	"bookpay/src/boot"
	"bookpay/src/checkout"
	"bookpay/src/common"
	"bookpay/src/config"
	"bookpay/src/jobs"
	"bookpay/src/ledger"
	"bookpay/src/lib"
	"bookpay/src/lib/mailer"
	"bookpay/src/middlewares"
	"bookpay/src/store"
	"bookpay/src/types"
	"bookpay/src/webhooks"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

const (
	apiPrefix string = "/api/v1"
)

var paymentMethodValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	method, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	switch types.PaymentMethod(method) {
	case types.METHOD_ONLINE, types.METHOD_OFFLINE:
		return true
	}
	return false
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("paymentmethod", paymentMethodValidatorFunc)
	}
}

// app holds what the route handlers need.
type app struct {
	cfg      *config.Config
	checkout *checkout.Service
	webhooks *webhooks.Processor
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		on, err := strconv.ParseBool(mm)
		if err == nil && on {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsLocal() {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	appHost := regexp.QuoteMeta(cfg.AppHost)
	cc.AllowOriginFunc = func(origin string) bool {
		match, _ := regexp.MatchString("^"+appHost+"$", origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	return g.Group(apiPrefix)
}

// routes mounts every endpoint on router. Client actions sit behind the
// bearer token check; the webhook is authenticated by its signature.
func (a *app) routes(router *gin.Engine) *gin.Engine {
	router.Use(corsMiddleware(a.cfg))
	router = maintenanceModeMiddleware(router)

	stripeWebhookRoute(router, a.webhooks)

	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware([]byte(a.cfg.JWTSecret)))
	{
		bookingHandlers(authorized, a.checkout)
		transactionHandlers(authorized, a.checkout)
	}
	return router
}

func initLogger() {
	cwd, _ := os.Getwd()
	logsDir := path.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		log.Printf("Could not create logs directory: %s\n", err.Error())
		return
	}
	gin.ForceConsoleColor()

	f, err := os.Create(path.Join(logsDir, "api.log"))
	if err == nil {
		gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   path.Join(logsDir, "server.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

// newApp connects every collaborator from cfg.
func newApp(ctx context.Context, cfg *config.Config, d *gorm.DB) (*app, *jobs.Workers, error) {
	sc := stripe.NewClient(cfg.StripeSecretKey)
	gw := lib.NewStripeGateway(sc, lib.GatewayConfig{Currency: cfg.Currency})

	l := ledger.New(d)
	st := store.New(d)

	m, err := mailer.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	emails := common.NewBookingMailer(st, l, m, cfg.AppHost)

	var snsClient lib.SNSAPI
	if cfg.ActivityTopicARN != "" {
		c, err := lib.AWSGetSNSClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		snsClient = c
	}

	svc := checkout.NewService(checkout.Deps{
		Gateway:  gw,
		Ledger:   l,
		Store:    st,
		Config:   cfg,
		Notifier: emails,
	})
	proc := webhooks.NewProcessor(webhooks.Deps{
		Ledger:        l,
		Store:         st,
		Config:        cfg,
		Holds:         svc,
		Emails:        emails,
		Activity:      common.NewSNSActivityTracker(snsClient, cfg.ActivityTopicARN),
		Refunds:       common.NewRefunds(st, l),
		Subscriptions: common.NewSubscriptions(st),
		Revalidator:   common.NewCacheRevalidator(lib.GetRedisClient(), cfg.RevalidateChannel),
		Resync:        common.NewServiceResync(st),
		Accounts:      gw,
	})
	a := &app{cfg: cfg, checkout: svc, webhooks: proc}
	return a, jobs.New(l, svc, cfg.WorkerBatchSize), nil
}

func main() {
	if os.Getenv("API_ENV") == "" || os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env file loaded: %s\n", err.Error())
		}
	}
	cfg := config.Load()
	initLogger()
	registerValidators()

	ctx := context.Background()
	if cfg.StripeSecretsARN != "" {
		client, err := lib.AWSGetSecretsManagerClient(ctx)
		if err != nil {
			log.Fatalf("Failed to load secrets: %s", err)
		}
		if err := lib.ApplyStripeSecrets(ctx, cfg, client); err != nil {
			log.Fatalf("Failed to load secrets: %s", err)
		}
	}
	if !lib.PingRedis(ctx) {
		log.Println("[redis] Not available, cache revalidation disabled")
	}

	d := boot.InitDb()
	a, workers, err := newApp(ctx, cfg, d)
	if err != nil {
		log.Fatalf("Failed to initialize: %s", err)
	}
	boot.InitScheduler(workers, cfg.WorkerInterval)
	defer boot.StopScheduler()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.routes(setupRouter()),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()
	log.Printf("Listening on %s\n", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("Server forced to shutdown: %s\n", err.Error())
	}
}
