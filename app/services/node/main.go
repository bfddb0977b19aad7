package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auriumchain/node/app/services/node/handlers"
	"github.com/auriumchain/node/foundation/blockchain/database/storage"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/blockchain/p2p"
	"github.com/auriumchain/node/foundation/blockchain/peer"
	"github.com/auriumchain/node/foundation/blockchain/signature"
	"github.com/auriumchain/node/foundation/blockchain/state"
	"github.com/auriumchain/node/foundation/blockchain/worker"
	"github.com/auriumchain/node/foundation/events"
	"github.com/auriumchain/node/foundation/logger"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Pick up the log file from the environment before the full config is
	// parsed so startup errors land in the same place.
	log, closeLog, err := logger.NewWithFile("NODE", os.Getenv("NODE_LOG_FILE"), logger.DefaultThresholdKB, logger.DefaultMaxRolls)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer closeLog()
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		closeLog()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Log struct {
			File string `conf:"help:rotating log file, stdout only when empty"`
		}
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:127.0.0.1:9080"`
		}
		P2P struct {
			Host          string        `conf:"default:0.0.0.0:9090"`
			AdvertiseHost string        `conf:"help:host:port peers dial back, defaults to the p2p host"`
			Timeout       time.Duration `conf:"default:10s"`
			IdleTimeout   time.Duration `conf:"default:2m"`
			TLSDir        string        `conf:"default:zblock/tls"`
		}
		State struct {
			Beneficiary       string        `conf:"help:address paid the block rewards"`
			KeyFile           string        `conf:"help:ecdsa key the beneficiary address is derived from"`
			GenesisAuthority  bool          `conf:"default:false"`
			Mining            bool          `conf:"default:true"`
			MiningInterval    time.Duration `conf:"default:10s"`
			SyncInterval      time.Duration `conf:"default:1m"`
			SettleDelay       time.Duration `conf:"default:5s"`
			PeerHorizon       time.Duration `conf:"default:1h"`
			KnownPeers        []string      `conf:"default:0.0.0.0:9090;0.0.0.0:9190"`
			MaxPeers          int           `conf:"default:50"`
			SelectStrategy    string        `conf:"default:fee"`
			StoreKind         string        `conf:"default:leveldb"`
			StorePath         string        `conf:"default:zblock/chain"`
			RequireSignatures bool          `conf:"default:false"`
			SignatureScheme   string        `conf:"default:ecdsa"`
		}
		Consensus struct {
			BlockTime         time.Duration `conf:"default:2m"`
			InitialDifficulty uint          `conf:"default:4"`
			RetargetInterval  uint64        `conf:"default:10"`
			TransPerBlock     int           `conf:"default:1000"`
		}
		Guard struct {
			MaxConnections    int           `conf:"default:3"`
			MaxBlocksPerMin   int           `conf:"default:60"`
			MaxMessagesPerMin int           `conf:"default:300"`
			MaxMessageBytes   int           `conf:"default:10485760"`
			BanDuration       time.Duration `conf:"default:15m"`
			IdleHorizon       time.Duration `conf:"default:1h"`
			SweepInterval     time.Duration `conf:"default:5m"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "aurium proof of work node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Events Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. Messages carrying the events prefix are also sent to
	// any websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Forward(s)
	}

	// =========================================================================
	// Blockchain Support

	beneficiary := cfg.State.Beneficiary
	if beneficiary == "" && cfg.State.KeyFile != "" {
		key, err := signature.LoadECDSA(cfg.State.KeyFile)
		if err != nil {
			return fmt.Errorf("unable to load beneficiary key: %w", err)
		}
		beneficiary = signature.Address(key.PublicKey())
	}
	if cfg.State.Mining && beneficiary == "" {
		return errors.New("mining requires a beneficiary address or key file")
	}

	advertise := cfg.P2P.AdvertiseHost
	if advertise == "" {
		advertise = cfg.P2P.Host
	}
	if !hostPort(advertise) {
		return fmt.Errorf("advertise host %q is not host:port", advertise)
	}

	// A peer set is a collection of known nodes in the network so blocks
	// can be synced and shared.
	peerSet := peer.NewPeerSet(cfg.State.MaxPeers)
	for _, host := range cfg.State.KnownPeers {
		if host != advertise {
			peerSet.Add(host)
		}
	}

	var verifier signature.Verifier
	if cfg.State.RequireSignatures {
		verifier, err = signature.NewVerifier(cfg.State.SignatureScheme)
		if err != nil {
			return err
		}
	}

	creds, err := p2p.LoadCredentials(cfg.P2P.TLSDir)
	if err != nil {
		return fmt.Errorf("unable to load tls credentials, run the admin gencerts command: %w", err)
	}

	clientTLS, err := creds.ClientConfig()
	if err != nil {
		return err
	}

	serverTLS, err := creds.ServerConfig()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.State.StoreKind, cfg.State.StorePath, ev)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	g := guard.New(guard.Config{
		MaxConnections:    cfg.Guard.MaxConnections,
		MaxBlocksPerMin:   cfg.Guard.MaxBlocksPerMin,
		MaxMessagesPerMin: cfg.Guard.MaxMessagesPerMin,
		MaxMessageBytes:   cfg.Guard.MaxMessageBytes,
		Window:            time.Minute,
		BanDuration:       cfg.Guard.BanDuration,
		IdleHorizon:       cfg.Guard.IdleHorizon,
	}, guard.SystemClock{}, ev)

	// The dialer is completed with the state once it exists. Sessions are
	// opened per sync and per broadcast.
	dialer := p2p.Dialer{
		TLS:             clientTLS,
		PeerID:          advertise,
		Timeout:         cfg.P2P.Timeout,
		MaxMessageBytes: cfg.Guard.MaxMessageBytes,
	}
	dial := func(ctx context.Context, host string) (state.Session, error) {
		c, err := dialer.Dial(ctx, host)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		BeneficiaryID:     beneficiary,
		Host:              advertise,
		Storage:           store,
		SelectStrategy:    cfg.State.SelectStrategy,
		KnownPeers:        peerSet,
		Verifier:          verifier,
		RequireSignatures: cfg.State.RequireSignatures,
		Dial:              dial,
		Consensus: state.Consensus{
			TargetBlockTime:   cfg.Consensus.BlockTime,
			RetargetInterval:  cfg.Consensus.RetargetInterval,
			InitialDifficulty: cfg.Consensus.InitialDifficulty,
			TransPerBlock:     cfg.Consensus.TransPerBlock,
		},
		EvHandler: ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	dialer.Local = st

	// =========================================================================
	// Start P2P Service

	srv, err := p2p.NewServer(p2p.ServerConfig{
		Host:        cfg.P2P.Host,
		PeerID:      advertise,
		TLS:         serverTLS,
		Guard:       g,
		Handler:     st,
		IdleTimeout: cfg.P2P.IdleTimeout,
		EvHandler:   ev,
	})
	if err != nil {
		return err
	}

	if err := srv.Listen(); err != nil {
		return fmt.Errorf("p2p listen: %w", err)
	}
	defer srv.Shutdown()

	log.Infow("startup", "status", "p2p listener started", "host", srv.Addr().String(), "advertise", advertise)

	// The worker package implements the different workflows such as mining,
	// peer sync and block broadcast. The worker will register itself with
	// the state.
	worker.Run(st, worker.Config{
		Mining:           cfg.State.Mining,
		MiningInterval:   cfg.State.MiningInterval,
		SyncInterval:     cfg.State.SyncInterval,
		SettleDelay:      cfg.State.SettleDelay,
		GenesisAuthority: cfg.State.GenesisAuthority,
		Guard:            g,
		SweepInterval:    cfg.Guard.SweepInterval,
		PeerHorizon:      cfg.State.PeerHorizon,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Guard:    g,
		Evts:     evts,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// hostPort reports whether the value is a usable host:port pair.
func hostPort(v string) bool {
	_, _, err := net.SplitHostPort(v)
	return err == nil
}
