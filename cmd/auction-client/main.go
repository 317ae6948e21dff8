package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/luxfi/log"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type AuctionClient struct {
	baseURL string
	logger  log.Logger
	client  *http.Client
	nextID  int
}

func NewAuctionClient(baseURL string) *AuctionClient {
	level, _ := log.ToLevel("info")
	logger := log.NewTestLogger(level)
	return &AuctionClient{
		baseURL: baseURL,
		logger:  logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		nextID: 1,
	}
}

func (c *AuctionClient) call(method string, params interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID,
	}
	c.nextID++

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(c.baseURL+"/rpc", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %s", string(body))
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: auction-client [-url URL] COMMAND [args]

Commands:
  ping
  info
  create OWNER CURRENCY AMOUNT TARGET
  bid AUCTION_ID BIDDER PRICE
  get AUCTION_ID
  list
  events
  shutdown
`)
	os.Exit(2)
}

func parseUint(s, name string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %s\n", name, s)
		os.Exit(2)
	}
	return v
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "auctiond JSON-RPC base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	c := NewAuctionClient(*baseURL)

	var (
		result json.RawMessage
		err    error
	)
	switch args[0] {
	case "ping":
		result, err = c.call("serp_ping", struct{}{})
	case "info":
		result, err = c.call("serp_getInfo", struct{}{})
	case "create":
		if len(args) != 5 {
			usage()
		}
		result, err = c.call("serp_createAuction", map[string]interface{}{
			"owner":    args[1],
			"currency": args[2],
			"amount":   parseUint(args[3], "amount"),
			"target":   parseUint(args[4], "target"),
		})
	case "bid":
		if len(args) != 4 {
			usage()
		}
		result, err = c.call("serp_bid", map[string]interface{}{
			"auctionId": parseUint(args[1], "auction id"),
			"bidder":    args[2],
			"price":     parseUint(args[3], "price"),
		})
	case "get":
		if len(args) != 2 {
			usage()
		}
		result, err = c.call("serp_getAuction", map[string]interface{}{
			"auctionId": parseUint(args[1], "auction id"),
		})
	case "list":
		result, err = c.call("serp_listAuctions", struct{}{})
	case "events":
		result, err = c.call("serp_getEvents", struct{}{})
	case "shutdown":
		result, err = c.call("serp_emergencyShutdown", struct{}{})
	default:
		usage()
	}

	if err != nil {
		c.logger.Error("Request failed", "command", args[0], "error", err)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, result, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(result))
	}
}
