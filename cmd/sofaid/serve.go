package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofai/sofaid/internal/api"
	"github.com/sofai/sofaid/internal/bridge"
	"github.com/sofai/sofaid/internal/bridge/discord"
	"github.com/sofai/sofaid/internal/bridge/slack"
	"github.com/sofai/sofaid/internal/chat"
	"github.com/sofai/sofaid/internal/config"
	"github.com/sofai/sofaid/internal/history"
	"github.com/sofai/sofaid/internal/inference"
	"github.com/sofai/sofaid/internal/model"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SofAI backend",
		Long:  "Loads the configured models and serves the chat API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sofai.yaml", "path to sofaid config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	svc, runner, err := buildChatService(ctx, cfg, out)
	if err != nil {
		return err
	}

	srv, err := api.New(api.Opts{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Store:   store,
		Chat:    svc,
		APIKeys: cfg.Auth.APIKeys,
		RatePer: cfg.RateLimit.PerSecond,
		Burst:   cfg.RateLimit.Burst,
		Out:     out,
	})
	if err != nil {
		return err
	}

	if runner != nil {
		go func() {
			if err := inference.Probe(ctx, runner, cfg.Probe.Schedule); err != nil {
				log.Printf("sofaid: probe: %v", err)
			}
		}()
	}

	if b := buildBridge(cfg, svc, store, out); b != nil {
		go func() {
			if err := b.Run(ctx); err != nil {
				log.Printf("sofaid: bridge: %v", err)
			}
		}()
	}

	return srv.Start(ctx)
}

// buildStore selects the history backend from configuration.
func buildStore(cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "sqlite":
		return history.OpenSQLite(cfg.History.Path)
	case "mysql":
		return history.OpenMySQL(cfg.History.DSN)
	default:
		return history.NewMemoryStore(), nil
	}
}

// buildChatService loads every configured model into the cache and registers
// it with the chat service. In dummy mode no runner is contacted and every
// model gets a dry-run replier. A load failure is fatal: the runner being
// absent at startup should stop the process, not produce per-request errors.
func buildChatService(ctx context.Context, cfg *config.Config, out io.Writer) (*chat.Service, *inference.Client, error) {
	svc := chat.NewService(cfg.DefaultModel)

	if cfg.SkipLoad {
		for _, mc := range cfg.Models {
			svc.Register(&chat.Model{
				Name:     mc.Name,
				Template: mc.Template,
				Defaults: paramsFor(mc),
				Replier:  chat.DummyReplier{},
			})
		}
		fmt.Fprintf(out, "Model loading skipped: serving dry-run replies\n")
		return svc, nil, nil
	}

	runner := inference.NewClient(cfg.Runner.URL, time.Duration(cfg.Runner.Timeout)*time.Second)
	cache := model.NewCache(runner)
	registry := model.NewRegistry(cfg.DefaultModel)

	for _, mc := range cfg.Models {
		fmt.Fprintf(out, "Loading model %s (%s)...\n", mc.Name, mc.Repo)
		h, err := cache.Load(ctx, model.LoadSpec{
			Identifier:      mc.Repo,
			TrustRemoteCode: mc.TrustRemoteCode,
			ReducedBit:      mc.ReducedBit,
			Revision:        mc.Revision,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("sofaid: load model %s: %w", mc.Name, err)
		}
		registry.Register(mc.Name, h)
		fmt.Fprintf(out, "Model %s ready on %s\n", mc.Name, h.Device)
	}

	for _, name := range registry.Names() {
		mc, _ := cfg.Model(name)
		_, h := registry.Resolve(name)
		svc.Register(&chat.Model{
			Name:     name,
			Template: mc.Template,
			Defaults: paramsFor(mc),
			Replier:  &chat.ModelReplier{Handle: h, Template: mc.Template},
		})
	}
	return svc, runner, nil
}

func paramsFor(mc config.ModelConfig) chat.Params {
	doSample := true
	if mc.Sampling.DoSample != nil {
		doSample = *mc.Sampling.DoSample
	}
	return chat.Params{
		MaxNewTokens: mc.Sampling.MaxNewTokens,
		DoSample:     doSample,
		Temperature:  mc.Sampling.Temperature,
		TopP:         mc.Sampling.TopP,
		Stop:         mc.Stop,
	}
}

// buildBridge assembles platform adapters from configuration. Returns nil
// when no platform is configured.
func buildBridge(cfg *config.Config, svc *chat.Service, store history.Store, out io.Writer) *bridge.Bridge {
	b := bridge.New(svc, store)
	active := 0

	if cfg.Bridge.Discord.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Bridge.Discord.BotToken,
			ChannelID: cfg.Bridge.Discord.ChannelID,
		})
		if err != nil {
			log.Printf("sofaid: discord adapter: %v", err)
		} else {
			b.AddAdapter(a)
			active++
			fmt.Fprintf(out, "Discord bridge enabled\n")
		}
	}

	if cfg.Bridge.Slack.AppToken != "" && cfg.Bridge.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			AppToken:  cfg.Bridge.Slack.AppToken,
			BotToken:  cfg.Bridge.Slack.BotToken,
			ChannelID: cfg.Bridge.Slack.ChannelID,
		})
		if err != nil {
			log.Printf("sofaid: slack adapter: %v", err)
		} else {
			b.AddAdapter(a)
			active++
			fmt.Fprintf(out, "Slack bridge enabled\n")
		}
	}

	if active == 0 {
		return nil
	}
	return b
}
