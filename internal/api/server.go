package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/binary-options-sim/internal/config"
	"github.com/binary-options-sim/internal/engine"
	"github.com/binary-options-sim/internal/oracle"
	"github.com/binary-options-sim/internal/store"
)

type Server struct {
	config      config.ServerConfig
	engine      *engine.Engine
	settlements <-chan engine.Settlement
	hub         *Hub
	limiter     *rate.Limiter
	server      *http.Server
}

func NewServer(cfg config.ServerConfig, eng *engine.Engine, settlements <-chan engine.Settlement) *Server {
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond)
	}

	return &Server{
		config:      cfg,
		engine:      eng,
		settlements: settlements,
		hub:         NewHub(),
		limiter:     limiter,
	}
}

// Handler builds the full middleware-wrapped router. Split from Run so tests
// can drive it with httptest.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/user-data", s.getUserData).Methods("GET")
	api.HandleFunc("/trades", s.openTrade).Methods("POST")
	api.HandleFunc("/trades/{trade_id}/settle", s.settleTrade).Methods("POST")
	api.HandleFunc("/price-at", s.getPriceAt).Methods("GET")
	api.HandleFunc("/price-history", s.getPriceHistory).Methods("GET")
	api.HandleFunc("/stream/settlements", s.streamSettlements).Methods("GET")
	api.HandleFunc("/health", s.getHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	})

	return c.Handler(s.rateLimit(router))
}

func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.config.BindAddress,
		Handler: s.Handler(),
	}

	go s.hub.Run(ctx)
	go s.forwardSettlements(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("API server starting on %s\n", s.config.BindAddress)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forwardSettlements(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case settlement := <-s.settlements:
			data, err := json.Marshal(newSettlementResponse(settlement))
			if err != nil {
				continue
			}
			s.hub.Broadcast(data)
		}
	}
}

func (s *Server) getUserData(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing username")
		return
	}

	view, err := s.engine.UserView(username)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	active := make([]activeTradeResponse, 0, len(view.ActiveTrades))
	for _, t := range view.ActiveTrades {
		active = append(active, activeTradeResponse{
			TradeID:    t.TradeID,
			Pair:       t.Pair,
			Side:       string(t.Side),
			Amount:     t.Amount.InexactFloat64(),
			PlacedAt:   t.PlacedAt,
			ExpiresAt:  t.ExpiresAt,
			Remaining:  t.Remaining,
			EntryPrice: t.EntryPrice,
		})
	}

	response := struct {
		OK           bool                  `json:"ok"`
		Balance      float64               `json:"balance"`
		ActiveTrades []activeTradeResponse `json:"active_trades"`
		PairSeeds    map[string]int64      `json:"pair_seeds"`
	}{
		OK:           true,
		Balance:      view.Balance.InexactFloat64(),
		ActiveTrades: active,
		PairSeeds:    view.PairSeeds,
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) openTrade(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string  `json:"username"`
		Pair     string  `json:"pair"`
		Side     string  `json:"side"`
		Amount   float64 `json:"amount"`
		Duration int64   `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := s.engine.OpenTrade(
		payload.Username,
		payload.Pair,
		store.TradeSide(payload.Side),
		decimal.NewFromFloat(payload.Amount),
		payload.Duration,
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	response := struct {
		OK         bool    `json:"ok"`
		TradeID    string  `json:"trade_id"`
		NewBalance float64 `json:"new_balance"`
	}{
		OK:         true,
		TradeID:    result.TradeID,
		NewBalance: result.NewBalance.InexactFloat64(),
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) settleTrade(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tradeID := vars["trade_id"]

	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	status, err := s.engine.LookupTrade(payload.Username, tradeID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	response := struct {
		OK      bool          `json:"ok"`
		Trade   tradeResponse `json:"trade"`
		Balance float64       `json:"balance"`
	}{
		OK:      true,
		Trade:   newTradeResponse(status.Trade),
		Balance: status.Balance.InexactFloat64(),
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) getPriceAt(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		pair = "EUR/USD"
	}

	ts := float64(time.Now().UnixNano()) / 1e9
	if raw := r.URL.Query().Get("ts"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		ts = parsed
	}

	price, seed, err := s.engine.PriceAt(pair, ts)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	response := struct {
		Price float64 `json:"price"`
		Seed  int64   `json:"seed"`
	}{
		Price: price,
		Seed:  seed,
	}

	writeJSON(w, http.StatusOK, response)
}

// maxHistoryPoints caps a single price-history response.
const maxHistoryPoints = 10000

func (s *Server) getPriceHistory(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "missing pair")
		return
	}

	now := time.Now().Unix()
	from := parseInt64Query(r, "from", now-3600)
	to := parseInt64Query(r, "to", now)
	step := parseInt64Query(r, "step", 60)

	if step <= 0 || to < from || (to-from)/step+1 > maxHistoryPoints {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	points, seed, err := s.engine.PriceHistory(pair, from, to, step)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	response := struct {
		Pair   string         `json:"pair"`
		Seed   int64          `json:"seed"`
		Points []oracle.Point `json:"points"`
		Count  int            `json:"count"`
	}{
		Pair:   pair,
		Seed:   seed,
		Points: points,
		Count:  len(points),
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	writeJSON(w, http.StatusOK, response)
}

func parseInt64Query(r *http.Request, key string, defaultValue int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	return defaultValue
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{OK: false, Error: message})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid payload")
	case errors.Is(err, engine.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, engine.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, engine.ErrTradeNotFound):
		writeError(w, http.StatusNotFound, "trade not found")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
