package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/outreachbackend/internal/app"
	"github.com/outreachbackend/internal/config"
	"github.com/outreachbackend/internal/logging"
	"github.com/outreachbackend/internal/models"
)

type cli struct {
	opts    []app.Option
	verbose bool
}

func newRootCmd(opts ...app.Option) *cobra.Command {
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:           "outreachctl",
		Short:         "Generate icebreakers and run rate-limited outreach",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.generateCmd(),
		c.outreachCmd(),
		c.statsCmd(),
		c.provisionCmd(),
	)
	return root
}

func (c *cli) logger(w io.Writer) zerolog.Logger {
	opt := logging.FromEnv()
	opt.Format = "console"
	opt.Writer = w
	if c.verbose {
		opt.Level = "debug"
	}
	return logging.New(opt)
}

// withApp loads configuration, builds the service and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Build(ctx, cfg, c.logger(cmd.ErrOrStderr()), c.opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func addProfileFlags(cmd *cobra.Command, p *models.Profile) {
	cmd.Flags().StringVar(&p.Name, "name", "", "contact name")
	cmd.Flags().StringVar(&p.Title, "title", "", "job title")
	cmd.Flags().StringVar(&p.Company, "company", "", "company")
	cmd.Flags().StringVar(&p.Industry, "industry", "", "industry")
	cmd.Flags().StringVar(&p.Location, "location", "", "location")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("company")
}

// --- generate ---

func (c *cli) generateCmd() *cobra.Command {
	var p models.Profile
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate (or fetch the cached) icebreaker for a profile",
		Long: `Generate an icebreaker without sending it. Cached icebreakers are reused
and no daily quota is consumed.

Example:
  outreachctl generate --name "Jane Doe" --title "AI Engineer" --company "Tech Corp"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Outreach.GenerateIcebreaker(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	addProfileFlags(cmd, &p)
	return cmd
}

// --- outreach ---

func (c *cli) outreachCmd() *cobra.Command {
	var p models.Profile
	cmd := &cobra.Command{
		Use:   "outreach",
		Short: "Run one outreach cycle: admit, generate, send, count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := a.Outreach.ProcessOutreach(ctx, p)
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				if !out.Success {
					return fmt.Errorf("outreach not completed: %s", out.Reason)
				}
				return nil
			})
		},
	}
	addProfileFlags(cmd, &p)
	return cmd
}

// --- stats ---

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's message count and estimated spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Outreach.GetDailyStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

// --- provision ---

func (c *cli) provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create tables for the configured store and check the KMS key",
		Long: `Create the icebreaker, rate limit and idempotency tables for the configured
STORE_BACKEND if they do not exist, enable TTL eviction on DynamoDB, and check
KMS_KEY_ID when KEY_PROVIDER=kms. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Provision(ctx, cfg, c.logger(cmd.ErrOrStderr())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s store\n", cfg.Store.Backend)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
