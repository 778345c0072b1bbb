// Command reelcast turns one piece of content into platform-tailored short
// videos and publishes them to Instagram Reels and YouTube Shorts.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	enhance "reelcast/01_enhance"
	video "reelcast/02_video"
	publish "reelcast/03_publish"
	"reelcast/config"
	"reelcast/pipeline"
	"reelcast/server"
	"reelcast/types"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg   *config.Config
	creds *config.Credentials
	log   zerolog.Logger
}

// components are the wired pipeline stages.
type components struct {
	enhancer     *enhance.Enhancer
	generator    *video.Generator
	instagram    *publish.Instagram
	youtube      *publish.YouTube
	orchestrator *pipeline.Orchestrator
}

func (a *app) init(cmd *cobra.Command) error {
	// .env is for local runs; deployed environments set the variables directly.
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid --log-level %q", a.logLevel)
	}
	var out io.Writer = cmd.ErrOrStderr()
	if a.pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	a.log = zerolog.New(out).Level(level).With().Timestamp().Logger()

	if a.cfg, err = config.Load(a.configPath); err != nil {
		return err
	}
	a.creds = config.LoadCredentials()
	return nil
}

func (a *app) wire() *components {
	c := &components{
		enhancer:  enhance.New(a.cfg, a.creds, a.log),
		generator: video.New(a.cfg, a.creds, a.log),
		instagram: publish.NewInstagram(a.cfg, a.creds, a.log),
		youtube:   publish.NewYouTube(a.cfg, a.creds, a.log),
	}
	c.orchestrator = pipeline.New(a.cfg, c.enhancer, c.generator,
		publish.NewRegistry(c.instagram, c.youtube), a.log)
	return c
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "reelcast",
		Short:   "Generate and publish short videos to Instagram and YouTube",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		SilenceUsage: true,
	}
	root.SetVersionTemplate("reelcast version {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to config YAML")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human-readable console logs")

	root.AddCommand(newServeCmd(a), newPublishCmd(a), newPlatformsCmd())
	return root
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			} else if port := os.Getenv("PORT"); port != "" {
				a.cfg.Server.Addr = ":" + port
			}
			gin.SetMode(ginMode(a.log.GetLevel()))
			c := a.wire()
			srv := server.New(a.cfg, a.creds, server.Deps{
				Pipeline:  c.orchestrator,
				Suggester: c.enhancer,
				Tasks:     c.generator,
				Instagram: c.instagram,
			}, a.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and PORT)")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var (
		req          types.PublishRequest
		noEnhance    bool
		youtubeToken string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the pipeline once and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noEnhance {
				off := false
				req.Enhance = &off
			}
			ctx := cmd.Context()
			if youtubeToken != "" {
				ctx = publish.WithTokenSource(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: youtubeToken}))
			}

			resp, err := a.wire().orchestrator.Run(ctx, &req)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return errors.Errorf("%d of %d platforms failed", len(resp.Errors), len(resp.Errors)+resp.Results.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Content, "content", "", "content to turn into videos")
	cmd.Flags().StringSliceVar(&req.Platforms, "platform", nil, "target platform (repeatable): "+fmt.Sprint(types.SupportedIDs()))
	cmd.Flags().IntVar(&req.Duration, "duration", 0, "requested video length in seconds (capped per platform)")
	cmd.Flags().BoolVar(&noEnhance, "no-enhance", false, "publish the content as written")
	cmd.Flags().StringVar(&youtubeToken, "youtube-token", "", "YouTube OAuth2 access token for this run")
	return cmd
}

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms and their limits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), types.Platforms())
		},
	}
}

// ginMode keeps gin's route banner and debug output for debug logging only.
func ginMode(level zerolog.Level) string {
	if level <= zerolog.DebugLevel {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "write output")
}

// Ensure the HTTP surface and the CLI stay on the same contracts.
var (
	_ server.Runner        = (*pipeline.Orchestrator)(nil)
	_ server.Suggester     = (*enhance.Enhancer)(nil)
	_ server.TaskLookup    = (*video.Generator)(nil)
	_ server.AccountLookup = (*publish.Instagram)(nil)
)
