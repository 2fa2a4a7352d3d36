package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"crowdsale/native/common"
	"crowdsale/native/sale"
	"crowdsale/native/token"
	"crowdsale/state"
)

// Config carries the dependencies required to construct the server.
type Config struct {
	Sale      *sale.Engine
	Token     *token.Token
	State     *state.Manager
	JWTSecret []byte
	Logger    *slog.Logger
}

// Server exposes the contributor and operator surfaces over HTTP.
type Server struct {
	sale      *sale.Engine
	token     *token.Token
	state     *state.Manager
	jwtSecret []byte
	logger    *slog.Logger
	router    http.Handler
}

// New constructs a configured router with operator authentication.
func New(cfg Config) *Server {
	srv := &Server{
		sale:      cfg.Sale,
		token:     cfg.Token,
		state:     cfg.State,
		jwtSecret: cfg.JWTSecret,
		logger:    cfg.Logger,
	}
	if srv.logger == nil {
		srv.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/sale", srv.handleSaleStatus)
		v1.Get("/contributors", srv.handleContributors)
		v1.Get("/contributions/{party}", srv.handleContributionOf)
		v1.Get("/token/supply", srv.handleTokenSupply)
		v1.Get("/token/balance/{addr}", srv.handleTokenBalance)
		v1.Post("/contribute", srv.handleContribute)
		v1.Post("/claim", srv.handleClaim)
		v1.Post("/refund", srv.handleRefund)

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(srv.requireOperator)
			admin.Post("/finalize", srv.handleFinalize)
			admin.Post("/whitelist", srv.handleSetWhitelist)
			admin.Post("/whitelist/enabled", srv.handleSetWhitelistEnabled)
			admin.Post("/withdraw", srv.handleWithdraw)
			admin.Post("/emergency/value", srv.handleEmergencyValue)
			admin.Post("/emergency/asset", srv.handleEmergencyAsset)
		})
	})

	srv.router = r
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type callerKey struct{}

// requireOperator authenticates operator requests with an HS256 bearer
// token whose subject is the caller address. The engine re-checks the
// operator identity; the middleware only establishes who is calling.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !parsed.Valid {
			respondError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		caller, err := parseAddress(claims.Subject)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "token subject is not an address")
			return
		}
		ctx := contextWithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps engine sentinels onto HTTP status codes so the
// caller can tell which constraint was violated.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sale.ErrZeroAmount),
		errors.Is(err, sale.ErrBelowMinimum),
		errors.Is(err, sale.ErrAboveMaximum),
		errors.Is(err, sale.ErrHardCapExceeded),
		errors.Is(err, sale.ErrInsufficientBalance),
		errors.Is(err, sale.ErrInvalidDestination),
		errors.Is(err, sale.ErrAmountExceedsBalance),
		errors.Is(err, sale.ErrUnknownAsset),
		errors.Is(err, sale.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, sale.ErrNotWhitelisted),
		errors.Is(err, sale.ErrNotOperator):
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrWindowClosed),
		errors.Is(err, sale.ErrSaleStillOpen),
		errors.Is(err, sale.ErrAlreadyFinalized),
		errors.Is(err, sale.ErrNotFinalized),
		errors.Is(err, sale.ErrSoftCapNotMet),
		errors.Is(err, sale.ErrSoftCapMet),
		errors.Is(err, sale.ErrNothingToClaim),
		errors.Is(err, sale.ErrNothingToRefund),
		errors.Is(err, sale.ErrZeroAllocation),
		errors.Is(err, common.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, sale.ErrSettlementFailed),
		errors.Is(err, sale.ErrRefundTransferFailed),
		errors.Is(err, sale.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("engine operation failed", slog.Any("error", err))
	}
	respondError(w, status, err.Error())
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address: %q", value)
	}
	return [20]byte(ethcommon.HexToAddress(trimmed)), nil
}

func formatAddress(addr [20]byte) string {
	return ethcommon.Address(addr).Hex()
}
