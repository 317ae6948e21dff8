package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/luxfi/log"

	"github.com/serpfi/auctiond/pkg/auction"
	"github.com/serpfi/auctiond/pkg/bidding"
	"github.com/serpfi/auctiond/pkg/treasury"
)

// JSONRPCServer handles JSON-RPC 2.0 requests
type JSONRPCServer struct {
	engine   *auction.Engine
	house    *bidding.House
	treasury *treasury.Treasury
	shutdown *auction.ShutdownSwitch
	logger   log.Logger
}

// NewJSONRPCServer creates a new JSON-RPC server
func NewJSONRPCServer(engine *auction.Engine, house *bidding.House, tr *treasury.Treasury, shutdown *auction.ShutdownSwitch, logger log.Logger) *JSONRPCServer {
	return &JSONRPCServer{
		engine:   engine,
		house:    house,
		treasury: tr,
		shutdown: shutdown,
		logger:   logger,
	}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements error interface
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC Error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ServeHTTP implements http.Handler
func (s *JSONRPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, nil, ParseError, "Parse error")
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendError(w, req.ID, InvalidRequest, "Invalid Request")
		return
	}

	result, err := s.handleMethod(req.Method, req.Params)
	if err != nil {
		s.sendError(w, req.ID, err.(*RPCError).Code, err.(*RPCError).Message)
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *JSONRPCServer) handleMethod(method string, params json.RawMessage) (interface{}, error) {
	switch method {
	// Auction methods
	case "serp_createAuction":
		return s.createAuction(params)
	case "serp_bid":
		return s.bid(params)
	case "serp_getAuction":
		return s.getAuction(params)
	case "serp_listAuctions":
		return s.listAuctions(params)

	// Event methods
	case "serp_getEvents":
		return s.getEvents(params)

	// Info methods
	case "serp_getInfo":
		return s.getInfo(params)
	case "serp_emergencyShutdown":
		return s.emergencyShutdown(params)
	case "serp_ping":
		return "pong", nil

	default:
		return nil, &RPCError{Code: MethodNotFound, Message: "Method not found"}
	}
}

// Create a collateral auction
func (s *JSONRPCServer) createAuction(params json.RawMessage) (interface{}, error) {
	var p struct {
		Owner    string `json:"owner"`
		Currency string `json:"currency"`
		Amount   uint64 `json:"amount"`
		Target   uint64 `json:"target"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}

	id, err := s.engine.NewCollateralAuction(
		auction.AccountID(p.Owner),
		auction.CurrencyID(p.Currency),
		auction.Balance(p.Amount),
		auction.Balance(p.Target),
	)
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}

	return map[string]interface{}{
		"auctionId": id,
		"status":    "created",
	}, nil
}

// Place a bid
func (s *JSONRPCServer) bid(params json.RawMessage) (interface{}, error) {
	var p struct {
		AuctionID uint64 `json:"auctionId"`
		Bidder    string `json:"bidder"`
		Price     uint64 `json:"price"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}

	err := s.house.Bid(auction.AccountID(p.Bidder), auction.AuctionID(p.AuctionID), auction.Balance(p.Price))
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}

	return map[string]interface{}{
		"auctionId": p.AuctionID,
		"status":    "accepted",
	}, nil
}

// Get auction by ID
func (s *JSONRPCServer) getAuction(params json.RawMessage) (interface{}, error) {
	var p struct {
		AuctionID uint64 `json:"auctionId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: "Invalid params"}
	}

	a, err := s.engine.Auction(auction.AuctionID(p.AuctionID))
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	if a == nil {
		return nil, &RPCError{Code: InternalError, Message: "Auction not found"}
	}

	result := map[string]interface{}{
		"id":           a.ID,
		"owner":        a.Owner,
		"currency":     a.Currency,
		"amount":       a.Amount,
		"target":       a.Target,
		"startTime":    a.StartTime,
		"reverseStage": false,
	}
	if info, ok := s.house.Auction(a.ID); ok {
		if info.Bid != nil {
			result["bidder"] = info.Bid.Bidder
			result["price"] = info.Bid.Price
			result["reverseStage"] = a.InReverseStage(info.Bid.Price)
		}
		if info.End != nil {
			result["end"] = *info.End
		}
	}
	return result, nil
}

// List open auctions
func (s *JSONRPCServer) listAuctions(params json.RawMessage) (interface{}, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	p.Limit = 100
	json.Unmarshal(params, &p)

	auctions := make([]*auction.CollateralAuction, 0)
	err := s.engine.Store().AscendAuctions(0, func(a *auction.CollateralAuction) bool {
		auctions = append(auctions, a)
		return p.Limit <= 0 || len(auctions) < p.Limit
	})
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}
	return auctions, nil
}

// Get recent events
func (s *JSONRPCServer) getEvents(params json.RawMessage) (interface{}, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	p.Limit = 100
	json.Unmarshal(params, &p)

	events := s.engine.Events().Events()
	if p.Limit > 0 && len(events) > p.Limit {
		events = events[len(events)-p.Limit:]
	}
	return events, nil
}

// System-wide status snapshot
func (s *JSONRPCServer) getInfo(params json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"currentBlock":  s.house.CurrentBlock(),
		"openAuctions":  s.house.OpenAuctions(),
		"targetInQueue": s.engine.TotalTargetInAuction(),
		"surplusPool":   s.treasury.SurplusPool(),
		"debitPool":     s.treasury.DebitPool(),
		"shutdown":      s.shutdown.IsShutdown(),
	}, nil
}

// Trigger emergency shutdown
func (s *JSONRPCServer) emergencyShutdown(params json.RawMessage) (interface{}, error) {
	s.shutdown.Trigger()
	s.logger.Warn("emergency shutdown triggered via RPC")
	return map[string]interface{}{
		"shutdown": true,
	}, nil
}

func (s *JSONRPCServer) sendError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
