package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harborfin/compliance-middleware/pkg/app/httpserver"
	"github.com/harborfin/compliance-middleware/pkg/auth"
	badgeservice "github.com/harborfin/compliance-middleware/pkg/badge/service"
	badgestore "github.com/harborfin/compliance-middleware/pkg/badge/store"
	"github.com/harborfin/compliance-middleware/pkg/compliance/modules"
	complianceservice "github.com/harborfin/compliance-middleware/pkg/compliance/service"
	"github.com/harborfin/compliance-middleware/pkg/config"
	directoryservice "github.com/harborfin/compliance-middleware/pkg/directory/service"
	directorystore "github.com/harborfin/compliance-middleware/pkg/directory/store"
	gateservice "github.com/harborfin/compliance-middleware/pkg/gate/service"
	gatestore "github.com/harborfin/compliance-middleware/pkg/gate/store"
	identityservice "github.com/harborfin/compliance-middleware/pkg/identity/service"
	identitystore "github.com/harborfin/compliance-middleware/pkg/identity/store"
	issuerservice "github.com/harborfin/compliance-middleware/pkg/issuer/service"
	issuerstore "github.com/harborfin/compliance-middleware/pkg/issuer/store"
	"github.com/harborfin/compliance-middleware/pkg/pgutil"
	registryservice "github.com/harborfin/compliance-middleware/pkg/registry/service"
	registrystore "github.com/harborfin/compliance-middleware/pkg/registry/store"
	tokenservice "github.com/harborfin/compliance-middleware/pkg/token/service"
	tokenstore "github.com/harborfin/compliance-middleware/pkg/token/store"
	verifierservice "github.com/harborfin/compliance-middleware/pkg/verifier/service"
	verifierstore "github.com/harborfin/compliance-middleware/pkg/verifier/store"
	"github.com/harborfin/compliance-middleware/pkg/zkproof"
)

// stores groups the per-domain persistence backends so the service wiring
// below is independent of whether they are Postgres or in-memory.
type stores struct {
	identities  identitystore.Store
	revocations issuerstore.RevocationStore
	issuers     directorystore.IssuerStore
	topics      directorystore.TopicStore
	bindings    registrystore.Storage
	credentials verifierstore.CredentialStore
	badges      badgestore.Store
	positions   gatestore.PositionStore
	balances    tokenstore.BalanceStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	inMemory := flag.Bool("in-memory", false, "Use in-memory stores instead of Postgres (development only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting compliance middleware",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	var st stores
	if *inMemory {
		st = memoryStores()
		logger.Warn("Using in-memory stores; state will not survive a restart")
	} else {
		db, err := pgutil.ConnectDB(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))

		st = stores{
			identities:  identitystore.NewPgStore(db),
			revocations: issuerstore.NewPgRevocationStore(db),
			issuers:     directorystore.NewPgIssuerStore(db),
			topics:      directorystore.NewPgTopicStore(db),
			bindings:    registrystore.NewPgStorage(db),
			credentials: verifierstore.NewPgCredentialStore(db),
			badges:      badgestore.NewPgStore(db),
			positions:   gatestore.NewPgPositionStore(db),
			balances:    tokenstore.NewPgBalanceStore(db),
		}
	}

	programVKey, err := hexutil.Decode(cfg.Verifier.ProgramVKey)
	if err != nil {
		logger.Fatal("Invalid verifier.program_vkey", zap.Error(err))
	}

	registryOwner := common.HexToAddress(cfg.Registry.Owner)
	verifierOwner := common.HexToAddress(cfg.Verifier.Owner)
	agents := make([]common.Address, len(cfg.Registry.Agents))
	for i, a := range cfg.Registry.Agents {
		agents[i] = common.HexToAddress(a)
	}

	backend := zkproof.NewCommitmentBackend()

	identitySvc := identityservice.NewService(st.identities, logger)
	issuerSvc := issuerservice.NewService(identitySvc, st.revocations, backend, programVKey, logger)
	directorySvc := directoryservice.NewService(st.issuers, st.topics, registryOwner,
		cfg.Registry.MaxTrustedIssuers, cfg.Registry.MaxClaimTopics, logger)
	registrySvc := registryservice.NewService(st.bindings, identitySvc, issuerSvc,
		directorySvc, directorySvc, registryOwner, agents, logger)

	verifierSvc := verifierservice.NewService(st.credentials, backend, programVKey,
		verifierOwner, cfg.Verifier.GlobalExpiration, logger)
	badgeSvc := badgeservice.NewService(st.badges, verifierSvc, verifierOwner, logger)

	engineOwner := ownerOrDefault(cfg.Compliance.Owner, registryOwner)
	engine := complianceservice.NewEngine(common.HexToAddress(cfg.Compliance.Address),
		engineOwner, cfg.Compliance.MaxModules, logger)

	ctx := context.Background()
	countryModule := modules.NewCountryRestrictModule(registrySvc, logger)
	if err := engine.AddModule(ctx, engineOwner, countryModule); err != nil {
		logger.Fatal("Failed to add country restriction module", zap.Error(err))
	}
	accreditationModule := modules.NewAccreditationModule(registrySvc, identitySvc, logger)
	if err := engine.AddModule(ctx, engineOwner, accreditationModule); err != nil {
		logger.Fatal("Failed to add accreditation module", zap.Error(err))
	}
	// The credential-type module is not plug-and-play: it refuses to bind
	// until required types are configured for this engine.
	credModule := modules.NewCredentialTypeModule(verifierSvc, cfg.Compliance.CredentialCacheTTL, logger)
	if err := engine.AddModule(ctx, engineOwner, credModule); err != nil {
		logger.Info("Credential-type module not bound; configure required types and re-add",
			zap.Error(err))
	}

	tokenAddr := common.HexToAddress(cfg.Token.Address)
	tokenSvc := tokenservice.NewService(tokenAddr, ownerOrDefault(cfg.Token.Owner, registryOwner),
		st.balances, registrySvc, engine, logger)
	if err := engine.BindToken(engineOwner, tokenAddr); err != nil {
		logger.Fatal("Failed to bind token to compliance engine", zap.Error(err))
	}

	gateSvc := gateservice.NewService(st.positions, registrySvc, badgeSvc,
		ownerOrDefault(cfg.Gate.Owner, registryOwner),
		cfg.Gate.RequireVerification, cfg.Gate.RequireCredentials, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	validator := auth.NewJWTValidator(cfg.JWKS.URL, cfg.JWKS.Issuer)
	r.Group(func(r chi.Router) {
		if validator.IsConfigured() {
			r.Use(requireJWT(validator, logger))
		}
		identityservice.RegisterRoutes(r, identitySvc, logger)
		issuerservice.RegisterRoutes(r, issuerSvc, logger)
		directoryservice.RegisterRoutes(r, directorySvc, logger)
		registryservice.RegisterRoutes(r, registrySvc, logger)
		verifierservice.RegisterRoutes(r, verifierSvc, logger)
		badgeservice.RegisterRoutes(r, badgeSvc, logger)
		complianceservice.RegisterRoutes(r, engine, logger)
		gateservice.RegisterRoutes(r, gateSvc, logger)
		tokenservice.RegisterRoutes(r, tokenSvc, logger)
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.Enabled {
		go serveMetrics(rootCtx, cfg.Monitoring.MetricsPort, logger)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := httpserver.ServeAndWait(rootCtx, logger, srv, cfg.Shutdown.Timeout); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func memoryStores() stores {
	return stores{
		identities:  identitystore.NewMemoryStore(),
		revocations: issuerstore.NewMemoryRevocationStore(),
		issuers:     directorystore.NewMemoryIssuerStore(),
		topics:      directorystore.NewMemoryTopicStore(),
		bindings:    registrystore.NewMemoryStorage(),
		credentials: verifierstore.NewMemoryCredentialStore(),
		badges:      badgestore.NewMemoryStore(),
		positions:   gatestore.NewMemoryPositionStore(),
		balances:    tokenstore.NewMemoryBalanceStore(),
	}
}

func ownerOrDefault(s string, def common.Address) common.Address {
	if s == "" {
		return def
	}
	return common.HexToAddress(s)
}

// requireJWT rejects requests without a valid admin bearer token.
func requireJWT(validator *auth.JWTValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			if _, err := validator.ValidateToken(token); err != nil {
				logger.Debug("Rejected request with invalid token", zap.Error(err))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serveMetrics(ctx context.Context, port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	if err := httpserver.ServeAndWait(ctx, logger, srv, 5*time.Second); err != nil {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
