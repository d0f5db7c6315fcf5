package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/veildex/veildex/pkg/exchange"
)

// callerHeader carries the caller's account address. Signature-based
// authentication is out of scope; the header is the capability check's
// identity input.
const callerHeader = "X-Account-Address"

// Server exposes the trading ledger over REST and WebSocket.
type Server struct {
	ledger *exchange.Ledger
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(ledger *exchange.Ledger, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		ledger: ledger,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Submissions
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/quick-trades", s.handleQuickTrade).Methods("POST")

	// Queries
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/balance", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/prices", s.handleGetPrices).Methods("GET")
	api.HandleFunc("/prices", s.handleUpdatePrice).Methods("POST")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Disclosure oracle
	api.HandleFunc("/reveals", s.handleRequestReveal).Methods("POST")
	api.HandleFunc("/reveals/{id:[0-9]+}", s.handleGetReveal).Methods("GET")
	api.HandleFunc("/oracle/callback", s.handleOracleCallback).Methods("POST")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", callerHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// BroadcastEvent forwards a ledger event to WebSocket subscribers.
func (s *Server) BroadcastEvent(e exchange.Event) {
	s.hub.BroadcastEvent(e)
}

// ==============================
// Handlers
// ==============================

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dir, err := exchange.ParseDirection(req.Direction)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	id, err := s.ledger.PlaceOrder(caller, req.Pair, dir, req.Amount, req.Price)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	info, err := s.ledger.GetOrder(caller, id)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, PlaceOrderResponse{OrderID: id, Status: info.Status.String()})
}

func (s *Server) handleQuickTrade(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req QuickTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dir, err := exchange.ParseDirection(req.Direction)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	id, err := s.ledger.QuickTrade(caller, req.Pair, dir, req.Amount)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, QuickTradeResponse{TradeID: id, Status: "executed"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.ledger.CancelOrder(caller, req.OrderID); err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	// Summary is public; the caller header only widens disclosure.
	caller := s.optionalCaller(r)
	info, err := s.ledger.GetOrder(caller, id)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, orderResponse(info))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	trader, ok := s.pathAddress(w, r)
	if !ok {
		return
	}

	infos, err := s.ledger.ListOrders(caller, trader)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	out := make([]OrderResponse, len(infos))
	for i, info := range infos {
		out[i] = orderResponse(info)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	trader, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		respondError(w, http.StatusBadRequest, "missing pair", "")
		return
	}

	balance, err := s.ledger.GetBalance(caller, trader, pair)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, BalanceResponse{Trader: trader.Hex(), Pair: pair, Balance: balance})
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	if pair := r.URL.Query().Get("pair"); pair != "" {
		respondJSON(w, PriceResponse{Pair: pair, Price: s.ledger.GetPrice(pair)})
		return
	}

	pairs := s.ledger.Pairs()
	out := make([]PriceResponse, len(pairs))
	for i, pair := range pairs {
		out[i] = PriceResponse{Pair: pair, Price: s.ledger.GetPrice(pair)}
	}
	respondJSON(w, out)
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.ledger.UpdatePrice(caller, req.Pair, req.Price); err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, PriceResponse{Pair: req.Pair, Price: req.Price})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		respondError(w, http.StatusBadRequest, "missing pair", "")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	caller := s.optionalCaller(r)
	trades, err := s.ledger.RecentTrades(caller, pair, limit)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	out := make([]TradeResponse, len(trades))
	for i, t := range trades {
		tr := TradeResponse{
			ID:        t.ID,
			Buyer:     t.Buyer.Hex(),
			Seller:    t.Seller.Hex(),
			Pair:      t.Pair,
			Timestamp: t.Timestamp,
		}
		if t.Disclosed {
			volume, price := t.Volume, t.Price
			tr.Volume = &volume
			tr.Price = &price
		}
		out[i] = tr
	}
	respondJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	orders, trades := s.ledger.Counts()
	respondJSON(w, StatsResponse{OrderCount: orders, TradeCount: trades})
}

func (s *Server) handleRequestReveal(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req RevealRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	id, err := s.ledger.RequestReveal(caller, req.OrderID, req.Field)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, RevealResponse{RequestID: id, OrderID: req.OrderID, Field: req.Field})
}

func (s *Server) handleGetReveal(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id", err.Error())
		return
	}

	rev, err := s.ledger.GetReveal(caller, id)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	resp := RevealResponse{
		RequestID: rev.ID,
		OrderID:   rev.OrderID,
		Field:     rev.Field,
		Delivered: rev.Delivered,
	}
	if rev.Delivered {
		v := rev.Value
		resp.Value = &v
	}
	respondJSON(w, resp)
}

// handleOracleCallback accepts the trusted decryption oracle's result.
// The transport gate is the admin identity; the core applies delivery
// exactly once.
func (s *Server) handleOracleCallback(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if !s.ledger.IsPrivileged(caller) {
		respondError(w, http.StatusForbidden, "forbidden", "oracle callback requires the privileged account")
		return
	}

	var req OracleCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.ledger.DeliverReveal(req.RequestID, req.Value); err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "delivered"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func orderResponse(info exchange.OrderInfo) OrderResponse {
	resp := OrderResponse{
		ID:        info.ID,
		Trader:    info.Trader.Hex(),
		Pair:      info.Pair,
		Direction: info.Direction.String(),
		Status:    info.Status.String(),
		CreatedAt: info.CreatedAt,
	}
	if info.Disclosed {
		amount, price := info.Amount, info.Price
		resp.Amount = &amount
		resp.Price = &price
	}
	return resp
}

// requireCaller extracts the caller address or writes a 400.
func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	h := r.Header.Get(callerHeader)
	if h == "" {
		respondError(w, http.StatusBadRequest, "missing caller", "set the "+callerHeader+" header")
		return common.Address{}, false
	}
	if !common.IsHexAddress(h) {
		respondError(w, http.StatusBadRequest, "invalid caller address", h)
		return common.Address{}, false
	}
	return common.HexToAddress(h), true
}

// optionalCaller returns the caller address or the zero address, which
// matches no owner and no privileged account.
func (s *Server) optionalCaller(r *http.Request) common.Address {
	h := r.Header.Get(callerHeader)
	if h == "" || !common.IsHexAddress(h) {
		return common.Address{}
	}
	return common.HexToAddress(h)
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	v := mux.Vars(r)["address"]
	if !common.IsHexAddress(v) {
		respondError(w, http.StatusBadRequest, "invalid address", v)
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func (s *Server) respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, exchange.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, exchange.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, exchange.ErrNotActive):
		respondError(w, http.StatusConflict, "order not active", err.Error())
	default:
		s.log.Errorw("internal_error", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
