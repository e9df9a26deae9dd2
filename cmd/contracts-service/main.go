package main

import (
	"fmt"
	"os"

	"github.com/nurpe/egreed-contracts/internal/accesscode"
	"github.com/nurpe/egreed-contracts/internal/auth"
	"github.com/nurpe/egreed-contracts/internal/config"
	"github.com/nurpe/egreed-contracts/internal/db"
	"github.com/nurpe/egreed-contracts/internal/excel"
	httphandler "github.com/nurpe/egreed-contracts/internal/http"
	"github.com/nurpe/egreed-contracts/internal/http/middleware"
	"github.com/nurpe/egreed-contracts/internal/logger"
	"github.com/nurpe/egreed-contracts/internal/notify"
	"github.com/nurpe/egreed-contracts/internal/payment"
	"github.com/nurpe/egreed-contracts/internal/pdf"
	"github.com/nurpe/egreed-contracts/internal/repository"
	"github.com/nurpe/egreed-contracts/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	clientRepo := repository.NewClientRepository(database)
	codeRepo := repository.NewAccessCodeRepository(database)
	auditRepo := repository.NewAuditRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)

	mailer := notify.NewMailer(cfg.Mail, log)
	contractService := service.NewContractService(
		contractRepo,
		clientRepo,
		codeRepo,
		auditRepo,
		accesscode.NewIssuer(),
		mailer,
		cfg,
	)

	// TODO: replace the stub with the MTN collection API client once sandbox credentials are issued.
	log.Warn().Msg("mobile money runs on the stub carrier gateway")
	providers := payment.NewRegistry(
		payment.NewStripe(cfg.Payments.Stripe, cfg.Payments.PlatformName, log),
		payment.NewFlutterwave(cfg.Payments.Flutterwave, cfg.Payments.PlatformName, cfg.Payments.HTTPTimeout, log),
		payment.NewMomo(payment.NewStubGateway(), cfg.Payments.Momo.DefaultCurrency, log),
	)
	paymentService := service.NewPaymentService(contractService, paymentRepo, providers, log)
	documentService := service.NewDocumentService(contractService, pdf.NewGenerator(cfg.Payments.PlatformName), excel.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, paymentService, documentService, log)
	authMiddleware := middleware.Auth(tokenParser)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	router := httphandler.NewRouter(handler, authMiddleware, limiter.Middleware(), cfg.HTTP.AllowedOrigins, cfg.Environment, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Strs("payment_providers", providers.Names()).Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
