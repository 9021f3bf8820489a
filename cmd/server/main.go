package main // Entry point package

import (
    "context"
    "log"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/streampass-platform/internal/config"
    "github.com/iliyamo/streampass-platform/internal/database"
    "github.com/iliyamo/streampass-platform/internal/handler"
    "github.com/iliyamo/streampass-platform/internal/middleware"
    "github.com/iliyamo/streampass-platform/internal/payment"
    "github.com/iliyamo/streampass-platform/internal/queue"
    "github.com/iliyamo/streampass-platform/internal/repository"
    "github.com/iliyamo/streampass-platform/internal/router"
    "github.com/iliyamo/streampass-platform/internal/service"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer func() { _ = db.Close() }()

    // Redis is optional: a nil client disables caching and rate limiting.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable, cache and rate limiting disabled")
    }

    // Repositories.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    events := repository.NewEventRepo(db)
    passes := repository.NewStreamPassRepo(db)
    gifts := repository.NewGiftRepo(db)
    txns := repository.NewTransactionRepo(db)

    // Payment verifiers; a provider with no configured key is left out
    // of the registry and its method tag rejected at redeem time.
    vm := map[string]payment.Verifier{}
    if v := payment.NewPaystackVerifier(cfg.PaystackSecret); v != nil {
        vm[payment.MethodPaystack] = v
    }
    if v := payment.NewFlutterwaveVerifier(cfg.FlutterwaveKey); v != nil {
        vm[payment.MethodFlutterwave] = v
    }
    verifiers := payment.NewRegistry(vm)

    // Services.
    notifier := service.AMQPNotifier{}
    issuer := service.NewGrantIssuer(db, passes, gifts, txns, events, users, verifiers, notifier)
    guard := service.NewSessionGuard(passes, cfg.ActiveWindow)
    converter := service.NewGiftConverter(db, passes, gifts)
    reaper := service.NewSessionReaper(passes, cfg.StaleWindow, cfg.ActiveWindow, cfg.ReaperInterval)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Background workers: the stale-session reaper and the notification
    // consumer.  The consumer manages its own reconnect loop.
    go reaper.Run(ctx)
    go func() {
        if err := queue.StartNotificationConsumer(); err != nil {
            log.Printf("notification consumer: %v", err)
        }
    }()

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, converter), cfg.JWTSecret)
    router.RegisterPublic(e, handler.NewPublicEventHandler(events),
        middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
    router.RegisterStreampass(e, handler.NewStreampassHandler(issuer, guard, passes, gifts, txns),
        cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    router.RegisterAdmin(e, handler.NewAdminHandler(events, reaper), cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    go func() {
        <-ctx.Done()
        _ = e.Shutdown(context.Background())
    }()
    if err := e.Start(addr); err != nil {
        log.Printf("server stopped: %v", err)
    }
}
