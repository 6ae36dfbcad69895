// Command marathoncast runs the broadcast control plane: the store,
// every actor, the Telemetry Poller, the Voice Mixer per voice-enabled
// host, and the HTTP/WebSocket surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelrun/marathoncast/internal/config"
	"github.com/kestrelrun/marathoncast/internal/eventactor"
	"github.com/kestrelrun/marathoncast/internal/hostactor"
	"github.com/kestrelrun/marathoncast/internal/hostactor/engineclient"
	"github.com/kestrelrun/marathoncast/internal/httpapi"
	"github.com/kestrelrun/marathoncast/internal/obs"
	"github.com/kestrelrun/marathoncast/internal/resolver"
	"github.com/kestrelrun/marathoncast/internal/router"
	"github.com/kestrelrun/marathoncast/internal/runneractor"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
	"github.com/kestrelrun/marathoncast/internal/telemetry"
	"github.com/kestrelrun/marathoncast/internal/voice"
	"github.com/kestrelrun/marathoncast/internal/webpush"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "marathoncast",
		Short: "Live control plane for multi-stream speedrunning broadcasts",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "marathoncast.yaml", "path to the host config file")

	root.AddCommand(serveCmd(), configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("DB path:        %s\n", cfg.DBPath)
			fmt.Printf("Web port:       %d\n", cfg.WebPort)
			fmt.Printf("Resolver cmd:   %s\n", cfg.ResolverCommand)
			fmt.Printf("LiveKit:        %s\n", boolStatus(cfg.IsLiveKitConfigured()))
			fmt.Printf("Discord:        %s\n", boolStatus(cfg.IsDiscordConfigured()))
			fmt.Printf("Hosts:\n")
			for _, h := range cfg.HostSettings.Hosts {
				fmt.Printf("  - %s (%s:%d) voice=%v\n", h.Name, h.Engine.IP, h.Engine.Port, h.EnableVoice)
			}
			return nil
		},
	}
}

func boolStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func serve(ctx context.Context) error {
	result, err := obs.Init(obs.Config{ServiceName: "marathoncast"})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	slog.SetDefault(result.Logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result.Shutdown(shutdownCtx)
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := store.Open(ctx, cfg.DBPath, slog.Default())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	hub := webpush.New(st, slog.Default())
	st.NotifyFunc = hub.TriggerStateUpdate

	res := resolver.New(cfg.ResolverCommand, func(handle string) string {
		return "https://twitch.tv/" + handle
	})

	splitsNotifier := &liveSplitsNotifier{store: st, hub: hub}
	poller := telemetry.New(st, splitsNotifier, slog.Default())

	runners := runneractor.New(st, poller, res, slog.Default())
	go runners.Run(ctx)

	hosts := hostactor.New(st, cfg.HostSettings, engineclient.Dial, slog.Default())
	go hosts.Run(ctx)

	streams := streamactor.New(st, hosts, runners, hub, slog.Default())
	go streams.Run(ctx)

	events := eventactor.New(st, streams, slog.Default())
	go events.Run(ctx)

	rtr := router.New(st, streams, events, hosts)

	for _, h := range cfg.HostSettings.Hosts {
		if !h.EnableVoice || !cfg.IsLiveKitConfigured() {
			continue
		}
		mixer := voice.New(h.Name, cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret,
			cfg.TransmitVoiceDFT, cfg.VADModelPath, st, &voiceNotifier{hub: hub}, slog.Default())
		go func(host string, m *voice.Mixer) {
			if err := m.Start(ctx, "marathoncast-"+host); err != nil {
				slog.Error("voice: mixer start failed", "host", host, "err", err)
			}
		}(h.Name, mixer)
	}

	srv := httpapi.New(st, hub, httpapi.Actors{
		Events:  events,
		Runners: runners,
		Streams: streams,
		Hosts:   hosts,
		Router:  rtr,
	}, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.WebPort))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Stop(shutdownCtx)
	}
}

// liveSplitsNotifier adapts the Telemetry Poller's
// NotifyLiveSplits(runnerID) to the Web Push hub's
// PublishLiveSplits(runnerID, *domain.Run) — the poller already
// persisted the run before calling this, so it re-reads it here.
type liveSplitsNotifier struct {
	store *store.Store
	hub   *webpush.Hub
}

func (n *liveSplitsNotifier) NotifyLiveSplits(runnerID int64) {
	run, err := n.store.GetRun(context.Background(), runnerID)
	if err != nil {
		return
	}
	n.hub.PublishLiveSplits(runnerID, run)
}

// voiceNotifier adapts voice.VoiceState (fixed-size DFT array) to
// webpush.VoiceState (DFT as a slice), since webpush must not import
// voice.
type voiceNotifier struct {
	hub *webpush.Hub
}

func (n *voiceNotifier) PublishVoiceState(vs voice.VoiceState) {
	out := webpush.VoiceState{Host: vs.Host, VoiceUsers: make(map[string]webpush.UserVoiceState, len(vs.VoiceUsers))}
	for id, u := range vs.VoiceUsers {
		dft := make([]float64, len(u.DFT))
		copy(dft, u.DFT[:])
		out.VoiceUsers[id] = webpush.UserVoiceState{Active: u.Active, Peak: u.Peak, DFT: dft}
	}
	n.hub.PublishVoiceState(out)
}
