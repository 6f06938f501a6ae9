package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simwire/server/internal/config"
	simnet "github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/replica"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SIMWIRE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	name := "simpeer"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	proto, err := packet.NewProtocol(cfg.Network.MaxFrameSize)
	if err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	server, err := net.ResolveUDPAddr("udp", cfg.Network.BindAddress)
	if err != nil {
		return fmt.Errorf("resolve server: %w", err)
	}
	sock, err := simnet.Listen(cfg.Network.PeerAddress, cfg.Network.InQueueSize, cfg.Network.MaxFrameSize, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer sock.Close()
	sock.Start()

	mirror := replica.NewMirror(log)
	hello := proto.MustEncode(packet.Hello{Name: name, Schema: proto.Schema()})

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()
	helloTicker := time.NewTicker(time.Second)
	defer helloTicker.Stop()
	statusTicker := time.NewTicker(5 * time.Second)
	defer statusTicker.Stop()

	log.Info("peer started",
		zap.String("name", name),
		zap.Stringer("local", sock.LocalAddr()),
		zap.Stringer("server", server),
		zap.Stringer("schema", proto.Schema()),
	)
	if err := sock.SendTo(hello, server); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	received := 0
	for {
		select {
		case <-ticker.C:
			for _, d := range sock.Poll(cfg.Network.MaxPacketsPerTick) {
				_, msg, err := proto.Decode(d.Data)
				if err != nil {
					log.Debug("bad frame from server", zap.Error(err))
					continue
				}
				received++
				mirror.Apply(msg)
			}
		case <-helloTicker.C:
			// Datagrams get lost; keep asking until the server acks.
			if _, joined := mirror.Joined(); !joined {
				if err := sock.SendTo(hello, server); err != nil {
					log.Warn("send hello failed", zap.Error(err))
				}
			}
		case <-statusTicker.C:
			log.Info("mirror",
				zap.Int("entities", mirror.Len()),
				zap.Int("packets", received),
				zap.Uint64("dropped", sock.Dropped()),
			)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if _, joined := mirror.Joined(); joined {
				if err := sock.SendTo(proto.MustEncode(packet.Goodbye{}), server); err != nil {
					log.Warn("send goodbye failed", zap.Error(err))
				}
			}
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
