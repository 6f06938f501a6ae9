package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simwire/server/internal/config"
	coresys "github.com/simwire/server/internal/core/system"
	"github.com/simwire/server/internal/data"
	"github.com/simwire/server/internal/handler"
	"github.com/simwire/server/internal/ident"
	simnet "github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/scripting"
	"github.com/simwire/server/internal/system"
	"github.com/simwire/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              simwire  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       entity replication over UDP         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SIMWIRE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	switch cfg.Debug.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	printBanner(cfg.Server.Name)

	// 3. Build the wire protocol and check it against the manifest
	printSection("protocol")
	proto, err := packet.NewProtocol(cfg.Network.MaxFrameSize)
	if err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	printStat("packet types", len(proto.Registry().Types(packet.Group)))
	printOK(fmt.Sprintf("schema %s", proto.Schema()))
	if cfg.World.Manifest != "" {
		manifest, err := ident.LoadManifest(cfg.World.Manifest)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
		if err := manifest.Verify(proto.Registry()); err != nil {
			return err
		}
		printOK("registration order matches manifest")
	}
	fmt.Println()

	// 4. World state, scripts and spawns
	printSection("world")
	state := world.NewState(proto, rand.New(rand.NewSource(time.Now().UnixNano())), log)

	luaEngine, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()
	var policy system.DirectionPolicy
	if luaEngine.HasFunc("wander_dir") {
		policy = luaEngine
		printOK("lua wander policy loaded")
	} else {
		log.Warn("no wander_dir script, headings are random", zap.String("dir", cfg.World.ScriptsDir))
	}

	state.ECS.AddSystem(system.NewWanderSystem(policy, state.Rand, log))
	state.ECS.AddSystem(system.NewReplicationSystem(state))
	system.SubscribeReplication(state, log)

	spawnList, err := data.LoadSpawnList(cfg.World.SpawnList)
	if err != nil {
		return fmt.Errorf("load spawn list: %w", err)
	}
	printStat("mobs listed", spawnList.Count())
	printStat("mobs spawned", state.SpawnAll(spawnList))
	fmt.Println()

	// 5. Packet handlers
	pktReg := packet.NewRegistry[*simnet.Peer](proto, log)
	handler.RegisterAll(pktReg, &handler.Deps{World: state, Log: log})

	// 6. Socket
	sock, err := simnet.Listen(cfg.Network.BindAddress, cfg.Network.InQueueSize, cfg.Network.MaxFrameSize, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer sock.Close()
	sock.Start()

	// 7. Loop stages
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(sock, pktReg, state, cfg.Network.MaxPacketsPerTick, log))
	runner.Register(system.NewEventSystem(state))
	runner.Register(system.NewTickSystem(state))
	runner.Register(system.NewOutputSystem(sock, state, log))

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", sock.LocalAddr()))
	printReady(fmt.Sprintf("game loop running (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	const statusInterval = 1000
	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
			if state.Ticks()%statusInterval == 0 {
				log.Info("status",
					zap.Uint64("tick", state.Ticks()),
					zap.Int("entities", state.ECS.Len()),
					zap.Int("peers", state.Peers.Len()),
					zap.Uint64("dropped", sock.Dropped()),
				)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			log.Info("server stopped", zap.Uint64("ticks", state.Ticks()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
