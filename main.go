package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"polybroker/approval"
	"polybroker/client"
	"polybroker/config"
	"polybroker/logger"
	"polybroker/safety"
	"polybroker/server"
)

const usage = `polybroker - human-in-the-loop order broker for Polymarket

Usage:
  polybroker propose -market <slug> [-outcome <label> | -token-id <id>] -side BUY|SELL -price <p> -size <n> [-session <id>]
  polybroker resume  -token <approval-token> -approve|-reject [-session <id>]
  polybroker cancel  -order <order-id>
  polybroker serve   [-addr <listen-addr>]
  polybroker watch   -token-id <id>
  polybroker balance

Flags common to all commands:
  -config <file>   YAML config file (or CONFIG_FILE env)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configFile := flags.String("config", "", "YAML config file")

	marketFlag := flags.String("market", "", "market id or slug")
	tokenIDFlag := flags.String("token-id", "", "explicit CLOB token id")
	outcomeFlag := flags.String("outcome", "", "outcome label, e.g. Yes")
	sideFlag := flags.String("side", "", "BUY or SELL")
	priceFlag := flags.Float64("price", 0, "limit price in (0,1)")
	sizeFlag := flags.Float64("size", 0, "order size in shares")
	sessionFlag := flags.String("session", "", "session binding id")
	tokenFlag := flags.String("token", "", "approval token")
	approveFlag := flags.Bool("approve", false, "approve the staged order")
	rejectFlag := flags.Bool("reject", false, "reject the staged order")
	orderFlag := flags.String("order", "", "venue order id")
	addrFlag := flags.String("addr", "", "listen address for serve")

	if err := flags.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.ListenAddr = *addrFlag
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)

	clob := client.NewClobClient(cfg.ClobURL)
	gamma := client.NewGammaClient(cfg.GammaURL)

	exchange := client.NewExchange(clob, cfg.PrivateKey, log)

	staging := approval.NewStaging(
		client.NewMarketProvider(gamma),
		exchange,
		client.EnvCredentials{PrivateKey: cfg.PrivateKey},
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "propose":
		runPropose(ctx, staging, cfg, proposeArgs{
			market:  *marketFlag,
			tokenID: *tokenIDFlag,
			outcome: *outcomeFlag,
			side:    *sideFlag,
			price:   *priceFlag,
			size:    *sizeFlag,
			session: *sessionFlag,
		}, log)

	case "resume":
		if *approveFlag == *rejectFlag {
			fmt.Fprintln(os.Stderr, "resume requires exactly one of -approve or -reject")
			os.Exit(2)
		}
		runResume(ctx, staging, cfg, *tokenFlag, *approveFlag, *sessionFlag, log)

	case "cancel":
		if *orderFlag == "" {
			fmt.Fprintln(os.Stderr, "cancel requires -order")
			os.Exit(2)
		}
		runCancel(ctx, exchange, cfg, *orderFlag, log)

	case "serve":
		srv := server.NewServer(cfg.ListenAddr, staging, cfg.Policy, log)
		go func() {
			<-ctx.Done()
			srv.Shutdown(context.Background())
		}()
		if err := srv.ListenAndServe(); err != nil {
			log.Error("server_stopped", "err", err)
		}

	case "watch":
		if *tokenIDFlag == "" {
			fmt.Fprintln(os.Stderr, "watch requires -token-id")
			os.Exit(2)
		}
		runWatch(ctx, cfg, *tokenIDFlag, log)

	case "balance":
		runBalance(ctx, clob, cfg, log)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

type proposeArgs struct {
	market  string
	tokenID string
	outcome string
	side    string
	price   float64
	size    float64
	session string
}

func runPropose(ctx context.Context, staging *approval.Staging, cfg *config.Config, args proposeArgs, log *logger.Logger) {
	result, err := staging.Propose(ctx, cfg.Policy(), approval.ProposeRequest{
		Market:    args.market,
		TokenID:   args.tokenID,
		Outcome:   args.outcome,
		Side:      approval.Side(args.side),
		Price:     args.price,
		Size:      args.size,
		SessionID: args.session,
	})
	if err != nil {
		log.Error("propose_failed", "err", err)
		os.Exit(1)
	}

	fmt.Println("Order staged, awaiting approval.")
	fmt.Println(result.Summary)
	fmt.Println()
	fmt.Println("Approval token (pass back via resume):")
	fmt.Println(result.Token)
}

func runResume(ctx context.Context, staging *approval.Staging, cfg *config.Config, token string, approve bool, session string, log *logger.Logger) {
	if token == "" {
		fmt.Fprintln(os.Stderr, "resume requires -token")
		os.Exit(2)
	}

	result, err := staging.Resume(ctx, cfg.Policy(), approval.ResumeRequest{
		Token:     token,
		Approve:   approve,
		SessionID: session,
	})
	if err != nil {
		log.Error("resume_failed", "err", err)
		os.Exit(1)
	}

	switch result.Outcome {
	case approval.OutcomeSubmitted:
		fmt.Printf("Order submitted: id=%s status=%s\n", result.OrderID, result.Status)
	default:
		fmt.Printf("Outcome: %s", result.Outcome)
		if result.Reason != "" {
			fmt.Printf(" (%s)", result.Reason)
		}
		fmt.Println()
	}
}

func runCancel(ctx context.Context, exchange *client.Exchange, cfg *config.Config, orderID string, log *logger.Logger) {
	policy := cfg.Policy()
	if !policy.TradingEnabled {
		log.Error("cancel_refused", "err", safety.ErrTradingDisabled)
		os.Exit(1)
	}
	if !safety.SandboxPermits(safety.ActionCancelOrder, policy.Sandboxed) {
		log.Error("cancel_refused", "err", safety.ErrSandboxed)
		os.Exit(1)
	}

	if err := exchange.Cancel(ctx, orderID); err != nil {
		log.Error("cancel_failed", "order_id", orderID, "err", err)
		os.Exit(1)
	}

	fmt.Printf("Order %s cancelled.\n", orderID)
}

func runWatch(ctx context.Context, cfg *config.Config, tokenID string, log *logger.Logger) {
	ws := client.NewWSMarketClient(cfg.MarketWSURL, client.WSMarketCallbacks{
		OnBestBidAsk: func(m client.BestBidAskMessage) {
			log.Info("best_bid_ask", "asset", m.AssetID, "bid", float64(m.BestBid), "ask", float64(m.BestAsk), "spread", float64(m.Spread))
		},
		OnLastTradePrice: func(m client.LastTradePriceMessage) {
			log.Info("last_trade", "asset", m.AssetID, "price", float64(m.Price), "side", m.Side, "size", float64(m.Size))
		},
		OnTickSizeChange: func(m client.TickSizeChangeMessage) {
			log.Warn("tick_size_change", "asset", m.AssetID, "old", float64(m.OldTickSize), "new", float64(m.NewTickSize))
		},
	}, log)

	if err := ws.Connect(); err != nil {
		log.Error("ws_connect_failed", "err", err)
		os.Exit(1)
	}
	defer ws.Close()

	if err := ws.SubscribeToAssets([]string{tokenID}); err != nil {
		log.Error("ws_subscribe_failed", "err", err)
		os.Exit(1)
	}

	if err := ws.Listen(ctx); err != nil && ctx.Err() == nil {
		log.Error("ws_listen_failed", "err", err)
		os.Exit(1)
	}
}

func runBalance(ctx context.Context, clob *client.ClobClient, cfg *config.Config, log *logger.Logger) {
	if cfg.PrivateKey == "" {
		log.Error("missing_config", "msg", "PRIVATE_KEY is required for balance")
		os.Exit(1)
	}

	creds, err := clob.CreateOrDeriveApiKey(ctx, cfg.PrivateKey)
	if err != nil {
		log.Error("failed_to_get_api_key", "err", err)
		os.Exit(1)
	}

	signer, err := client.NewEIP712OrderSigner(cfg.PrivateKey, client.PolygonChainID, client.CTFExchangeAddress)
	if err != nil {
		log.Error("invalid_private_key", "err", err)
		os.Exit(1)
	}

	trade := client.NewTradeClient(cfg.ClobURL, &client.PolymarketL2Auth{
		Address:    signer.GetAddress().Hex(),
		APIKey:     creds.ApiKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	})

	balance, err := trade.GetBalance(ctx)
	if err != nil {
		log.Error("balance_failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Collateral balance: %.2f USDC\n", balance)
}
