package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/manager"
	"github.com/luxfi/log"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/serpfi/auctiond/pkg/api"
	"github.com/serpfi/auctiond/pkg/auction"
	"github.com/serpfi/auctiond/pkg/bidding"
	"github.com/serpfi/auctiond/pkg/dex"
	"github.com/serpfi/auctiond/pkg/ledger"
	"github.com/serpfi/auctiond/pkg/prices"
	"github.com/serpfi/auctiond/pkg/storage"
	"github.com/serpfi/auctiond/pkg/treasury"
)

const (
	defaultDataDir     = ".auctiond"
	defaultHTTPPort    = 8080
	defaultWSPort      = 8081
	defaultMetricsPort = 9090
)

type Config struct {
	// Paths
	DataDir  string
	LogLevel string

	// Network
	HTTPPort    int
	WSPort      int
	MetricsPort int
	NATSURL     string

	// Clock
	BlockTime time.Duration

	// Currencies
	StableCurrency string
	NativeCurrency string

	// Features
	EnableMetrics bool
	DemoLiquidity bool
}

type AuctiondNode struct {
	config   *Config
	db       database.Database
	logger   log.Logger
	registry *prometheus.Registry

	ledger   *ledger.Ledger
	exchange *dex.DEX
	treasury *treasury.Treasury
	oracle   *prices.Oracle
	shutdown *auction.ShutdownSwitch
	house    *bidding.House
	engine   *auction.Engine

	natsConn *nats.Conn
	consumer *api.NATSCancelConsumer
	wsServer *api.WebSocketServer

	blockHeight uint64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuctiondNode(config *Config) (*AuctiondNode, error) {
	level, _ := log.ToLevel(config.LogLevel)
	logger := log.NewTestLogger(level)
	logger.Info("Initializing auctiond node")

	dataPath := filepath.Join(os.Getenv("HOME"), config.DataDir)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbManager := manager.NewManager(dataPath, nil)
	dbConfig := manager.DefaultBadgerDBConfig("badgerdb")
	dbConfig.Namespace = "auctiond"

	var db database.Database
	db, err := dbManager.New(dbConfig)
	if err != nil {
		logger.Warn("Failed to open BadgerDB", "error", err)
		db = storage.New()
		logger.Info("Using in-memory database")
	} else {
		logger.Info("BadgerDB initialized", "path", filepath.Join(dataPath, "badgerdb"))
	}

	registry := prometheus.NewRegistry()

	accounts := ledger.New()
	exchange := dex.New(accounts, "dex", logger.New("module", "dex"))
	tr := treasury.New(accounts, exchange, "treasury",
		auction.CurrencyID(config.StableCurrency), logger.New("module", "treasury"))
	oracle := prices.NewOracle()
	shutdown := auction.NewShutdownSwitch()
	house := bidding.NewHouse(logger.New("module", "bidding"))

	cfg := auction.DefaultConfig()
	cfg.SettCurrency = auction.CurrencyID(config.StableCurrency)
	cfg.NativeCurrency = auction.CurrencyID(config.NativeCurrency)

	ctx, cancel := context.WithCancel(context.Background())

	node := &AuctiondNode{
		config:   config,
		db:       db,
		logger:   logger,
		registry: registry,
		ledger:   accounts,
		exchange: exchange,
		treasury: tr,
		oracle:   oracle,
		shutdown: shutdown,
		house:    house,
		ctx:      ctx,
		cancel:   cancel,
	}

	var submitter auction.CancelSubmitter
	if config.NATSURL != "" {
		nc, err := nats.Connect(config.NATSURL)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		node.natsConn = nc
		submitter = api.NewNATSCancelSubmitter(nc, logger.New("module", "nats"))
		logger.Info("NATS connected", "url", config.NATSURL)
	}

	engine := auction.NewEngine(cfg, logger.New("module", "auction"), db, auction.Deps{
		House:      house,
		Ledger:     accounts,
		Treasury:   tr,
		DEX:        exchange,
		Prices:     oracle,
		Shutdown:   shutdown,
		Submitter:  submitter,
		Registerer: registry,
	})
	node.engine = engine
	house.SetHandler(engine)

	if submitter == nil {
		submitter = api.NewLoopbackCancelSubmitter(engine, logger.New("module", "cancel"))
		// Deps were captured by value; install the loopback after the
		// engine exists since it cancels through the engine itself.
		engine.SetSubmitter(submitter)
	} else {
		node.consumer = api.NewNATSCancelConsumer(node.natsConn, engine, logger.New("module", "nats"))
	}

	if config.DemoLiquidity {
		if err := node.seedDemoLiquidity(); err != nil {
			logger.Warn("demo liquidity bootstrap failed", "error", err)
		}
	}

	return node, nil
}

// seedDemoLiquidity funds a bootstrap account and opens DEX pools so a
// fresh node can exercise the full settlement path.
func (n *AuctiondNode) seedDemoLiquidity() error {
	stable := auction.CurrencyID(n.config.StableCurrency)
	native := auction.CurrencyID(n.config.NativeCurrency)
	collateral := auction.CurrencyID("BTC")

	const seed = "liquidity-provider"
	n.ledger.Deposit(stable, seed, 2_000_000)
	n.ledger.Deposit(native, seed, 1_000_000)
	n.ledger.Deposit(collateral, seed, 100_000)

	if err := n.exchange.AddLiquidity(seed, collateral, stable, 10_000, 1_000_000); err != nil {
		return err
	}
	if err := n.exchange.AddLiquidity(seed, collateral, native, 10_000, 100_000); err != nil {
		return err
	}
	if err := n.exchange.AddLiquidity(seed, native, stable, 100_000, 1_000_000); err != nil {
		return err
	}

	n.oracle.SetPrice(stable, decimal.NewFromInt(1))
	n.oracle.SetPrice(native, decimal.NewFromInt(10))
	n.oracle.SetPrice(collateral, decimal.NewFromInt(100))

	n.logger.Info("Demo liquidity seeded", "provider", seed)
	return nil
}

func (n *AuctiondNode) Start() error {
	n.logger.Info("Starting auctiond node",
		"dataDir", filepath.Join(os.Getenv("HOME"), n.config.DataDir),
		"httpPort", n.config.HTTPPort,
		"wsPort", n.config.WSPort,
		"blockTime", n.config.BlockTime)

	if n.consumer != nil {
		if err := n.consumer.Start(); err != nil {
			return fmt.Errorf("failed to start cancel consumer: %w", err)
		}
	}

	n.wg.Add(1)
	go n.runClock()

	if n.config.EnableMetrics {
		n.wg.Add(1)
		go n.runMetricsServer()
	}

	n.wg.Add(1)
	go n.runJSONRPCServer()

	n.wg.Add(1)
	go n.runWebSocketServer()

	n.logger.Info("auctiond node started successfully")
	return nil
}

func (n *AuctiondNode) runClock() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.config.BlockTime)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			height := atomic.AddUint64(&n.blockHeight, 1)
			n.house.OnBlock(auction.BlockNumber(height))
			if n.shutdown.IsShutdown() {
				if _, err := n.engine.RunUnwindSweep(time.Now()); err != nil {
					n.logger.Error("unwind sweep failed", "error", err)
				}
			}
		}
	}
}

func (n *AuctiondNode) runMetricsServer() {
	defer n.wg.Done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", n.config.MetricsPort),
		Handler: mux,
	}

	go func() {
		<-n.ctx.Done()
		server.Shutdown(context.Background())
	}()

	n.logger.Info("Metrics server started", "port", n.config.MetricsPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		n.logger.Error("Metrics server error", "error", err)
	}
}

func (n *AuctiondNode) runJSONRPCServer() {
	defer n.wg.Done()

	server := api.NewJSONRPCServer(n.engine, n.house, n.treasury, n.shutdown,
		n.logger.New("module", "rpc"))

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "healthy",
			"block":    atomic.LoadUint64(&n.blockHeight),
			"auctions": n.house.OpenAuctions(),
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", n.config.HTTPPort),
		Handler: mux,
	}

	go func() {
		<-n.ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	n.logger.Info("JSON-RPC server started", "port", n.config.HTTPPort, "endpoint", "/rpc")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		n.logger.Error("JSON-RPC server error", "error", err)
	}
}

func (n *AuctiondNode) runWebSocketServer() {
	defer n.wg.Done()

	n.wsServer = api.NewWebSocketServer(n.engine.Events(), n.logger.New("module", "ws"))
	n.wsServer.Start()

	mux := http.NewServeMux()
	mux.Handle("/ws", n.wsServer)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", n.config.WSPort),
		Handler: mux,
	}

	go func() {
		<-n.ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	n.logger.Info("WebSocket server started", "port", n.config.WSPort, "endpoint", "/ws")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		n.logger.Error("WebSocket server error", "error", err)
	}
}

func (n *AuctiondNode) Shutdown() {
	n.logger.Info("Shutting down auctiond node...")

	n.cancel()
	n.wg.Wait()

	if n.wsServer != nil {
		n.wsServer.Stop()
	}
	if n.consumer != nil {
		n.consumer.Stop()
	}
	if n.natsConn != nil {
		n.natsConn.Close()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info("auctiond node shutdown complete")
}

func main() {
	config := &Config{
		DataDir: defaultDataDir,
	}

	flag.StringVar(&config.DataDir, "data-dir", defaultDataDir, "Data directory (relative to $HOME)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.IntVar(&config.HTTPPort, "http-port", defaultHTTPPort, "HTTP API port")
	flag.IntVar(&config.WSPort, "ws-port", defaultWSPort, "WebSocket port")
	flag.IntVar(&config.MetricsPort, "metrics-port", defaultMetricsPort, "Prometheus metrics port")
	flag.StringVar(&config.NATSURL, "nats", "", "NATS server URL (empty = in-process cancel delivery)")

	blockTime := flag.Duration("block-time", time.Second, "Block interval")

	flag.StringVar(&config.StableCurrency, "stable", "SETUSD", "Settlement currency")
	flag.StringVar(&config.NativeCurrency, "native", "DNAR", "Native intermediary currency")

	flag.BoolVar(&config.EnableMetrics, "enable-metrics", true, "Enable Prometheus metrics")
	flag.BoolVar(&config.DemoLiquidity, "demo-liquidity", false, "Seed demo accounts and DEX pools")

	flag.Parse()

	config.BlockTime = *blockTime

	node, err := NewAuctiondNode(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize node: %v\n", err)
		os.Exit(1)
	}

	if err := node.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start node: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	node.Shutdown()
}
