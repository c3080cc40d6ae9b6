// Command uhcd is the unified hi-fi control bridge daemon: it federates a
// Roon-style room controller, an HQPlayer-style DSP player, a media-server
// JSON-RPC host, and SSDP-discovered OpenHome/UPnP renderers behind one
// zone-oriented HTTP/SSE API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/aggregator"
	"github.com/openhorizonlabs/uhc/internal/api"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/config"
	"github.com/openhorizonlabs/uhc/internal/coordinator"
	"github.com/openhorizonlabs/uhc/internal/hqplayer"
	"github.com/openhorizonlabs/uhc/internal/mediaserver"
	"github.com/openhorizonlabs/uhc/internal/openhome"
	"github.com/openhorizonlabs/uhc/internal/roon"
	"github.com/openhorizonlabs/uhc/internal/upnp"
	"github.com/openhorizonlabs/uhc/internal/zeroconf"
)

func main() {
	var (
		addr   = flag.String("addr", ":8080", "HTTP listen address")
		cfgDir = flag.String("config-dir", "", "knob config directory (default: ~/.config/uhcd)")
		debug  = flag.Bool("debug", false, "enable debug logging")

		roonEnable     = flag.Bool("roon-enable", true, "enable the Roon room-controller adapter")
		roonHost       = flag.String("roon-host", "", "Roon Core host (the built-in fake client connects whether or not a host is set)")
		roonPort       = flag.Int("roon-port", 9100, "Roon Core port")
		hqpEnable      = flag.Bool("hqplayer-enable", true, "enable the default HQPlayer instance")
		hqpName        = flag.String("hqplayer-instance", "main", "default HQPlayer instance name")
		hqpHost        = flag.String("hqplayer-host", "", "default HQPlayer instance host")
		hqpPort        = flag.Int("hqplayer-port", 4321, "default HQPlayer instance port")
		lmsEnable      = flag.Bool("mediaserver-enable", true, "enable the media-server JSON-RPC adapter")
		lmsURL         = flag.String("mediaserver-url", "", "media-server base URL, e.g. http://lms.local:9000")
		lmsPlayer      = flag.String("mediaserver-player", "", "media-server player_id (MAC address)")
		openhomeEnable = flag.Bool("openhome-enable", true, "enable OpenHome SSDP discovery")
		upnpEnable     = flag.Bool("upnp-enable", true, "enable plain UPnP AV SSDP discovery")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	version := envOr("UHC_VERSION", "dev")
	gitSHA := envOr("UHC_GIT_SHA", "unknown")
	slog.Info("uhcd starting", "version", version, "git_sha", gitSHA)

	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "uhcd")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}
	knobStore := config.NewJSONStore(*cfgDir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b := bus.New()

	// roon.RoomClient's production binding is the vendor Roon Extension SDK,
	// named out of scope in spec.md §1 ("vendor-specific control protocols
	// below the adapter surface... we assume a library that speaks each
	// one"); nothing in the retrieval pack provides a Go binding for it, so
	// this wires the package's own fake, same boundary-stub role as the
	// teacher's hardware.NewMock() when no real driver is available.
	roonAdapter := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient {
		return roon.NewFakeClientForTest()
	})
	if *roonHost != "" {
		if err := roonAdapter.Configure(adapter.ConnectionParams{Host: *roonHost, Port: *roonPort}); err != nil {
			slog.Warn("roon: configure failed", "err", err)
		}
	}

	hqpInstances := hqplayer.NewInstanceManager(b)
	hqpLinks := hqplayer.NewZoneLinkService()

	lmsAdapter := mediaserver.New(b, *lmsURL, *lmsPlayer, nil)
	openhomeAdapter := openhome.New(b, nil)
	upnpAdapter := upnp.New(b, nil)

	var startables []adapter.Startable
	if *roonEnable {
		startables = append(startables, roonAdapter)
	}
	if *lmsEnable {
		startables = append(startables, lmsAdapter)
	}
	if *openhomeEnable {
		startables = append(startables, openhomeAdapter)
	}
	if *upnpEnable {
		startables = append(startables, upnpAdapter)
	}
	coord := coordinator.New(startables)

	if *hqpEnable && *hqpHost != "" {
		if _, err := hqpInstances.Add(ctx, *hqpName, *hqpHost+":"+strconv.Itoa(*hqpPort)); err != nil {
			slog.Warn("hqplayer: failed to add default instance", "instance", *hqpName, "err", err)
		}
	}

	agg := aggregator.New(b, "aggregator")
	go agg.Run(ctx)

	commanders := api.NewCommanders(agg, roonAdapter, hqpInstances, lmsAdapter, openhomeAdapter, upnpAdapter)
	hqpSurface := api.NewHQPlayerSurface(hqpInstances, hqpLinks, b)
	images := api.NewImageSources(roonAdapter, lmsAdapter)
	handlers := api.NewHandlers(agg, coord, b, commanders, hqpSurface, knobStore, images, version, gitSHA)
	router := api.NewRouter(handlers)

	zc := zeroconf.New("uhcd", portFromAddr(*addr))
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf: failed to advertise service", "err", err)
		}
	}()

	coord.Start(ctx)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout: /events is a long-lived SSE stream
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("uhcd listening", "addr", *addr, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	coord.Stop(shutCtx)
	hqpInstances.StopAll(shutCtx)

	if err := knobStore.Flush(); err != nil {
		slog.Warn("failed to flush knob config", "err", err)
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	slog.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// portFromAddr extracts the numeric port from a ":8080" or "host:8080"
// listen address, for the zeroconf TXT record.
func portFromAddr(addr string) int {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 8080
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil {
		return 8080
	}
	return p
}
