// cmd/monitor/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/formreach-client/internal/analytics"
	"github.com/unclebandit/formreach-client/internal/api"
	"github.com/unclebandit/formreach-client/internal/config"
	"github.com/unclebandit/formreach-client/internal/dispatch"
	"github.com/unclebandit/formreach-client/internal/logging"
	"github.com/unclebandit/formreach-client/internal/progress"
	"github.com/unclebandit/formreach-client/internal/realtime"
	"github.com/unclebandit/formreach-client/internal/refresh"
	"github.com/unclebandit/formreach-client/internal/store"
)

type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.Store
	history    *progress.History
	client     *api.Client
	dispatcher *dispatch.Dispatcher
	refresher  *refresh.Refresher
}

func newApp() (*app, error) {
	cfg := config.Load()
	logger, err := logging.New(cfg.Development)
	if err != nil {
		return nil, err
	}

	st := store.New()
	history := progress.NewHistory(cfg.HistorySize)
	st.SetOnChange(history.Attach())

	client := api.NewClient(cfg.APIBaseURL, cfg.SessionToken, cfg.RequestTimeout)
	dispatcher := dispatch.New(st, client, logger)
	dispatcher.Timeout = cfg.RequestTimeout
	dispatcher.OnAuthError = func(err error) {
		logger.Error("session expired, log in again", zap.Error(err))
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		history:    history,
		client:     client,
		dispatcher: dispatcher,
		refresher:  refresh.New(client, st),
	}, nil
}

func main() {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init failed:", err)
		os.Exit(1)
	}
	defer a.logger.Sync()

	root := &cobra.Command{
		Use:           "monitor",
		Short:         "FormReach campaign monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		a.listCmd(),
		a.watchCmd(),
		a.lifecycleCmd("start", "Start a campaign", a.dispatcher.Start),
		a.lifecycleCmd("pause", "Pause a running campaign", a.dispatcher.Pause),
		a.lifecycleCmd("stop", "Stop a campaign", a.dispatcher.Stop),
		a.deleteCmd(),
		a.duplicateCmd(),
		a.retryCmd(),
		a.analyticsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) listCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			campaigns, err := a.client.ListCampaigns(ctx, status)
			if err != nil {
				return err
			}
			for _, c := range campaigns {
				a.store.PutCampaign(c, a.store.NextMarker())
			}
			fmt.Printf("%-38s %-10s %8s %9s %7s  %s\n", "ID", "STATUS", "PROGRESS", "SUCCESS", "FAILED", "NAME")
			for _, c := range a.store.Campaigns() {
				fmt.Printf("%-38s %-10s %7d%% %9d %7d  %s\n",
					c.ID, c.Status,
					progress.ProgressPct(c.Processed, c.TotalWebsites),
					c.Successful, c.Failed, c.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <campaign-id>",
		Short: "Follow a campaign's progress live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.refresher.Campaign(ctx, id); err != nil {
				return err
			}

			channel := realtime.NewChannel(a.cfg.WSURL, a.cfg.SessionToken, a.store, a.logger)
			channel.Resync = func(ctx context.Context) error {
				return a.refresher.Campaign(ctx, id)
			}
			go channel.Run(ctx)

			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				a.printProgress(id)
				c, ok := a.store.Campaign(id)
				if ok && c.Status.IsTerminal() {
					fmt.Printf("campaign %s finished with status %s\n", id, c.Status)
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}

func (a *app) printProgress(id string) {
	c, ok := a.store.Campaign(id)
	if !ok {
		fmt.Println("campaign not in store yet")
		return
	}
	fmt.Printf("[%s] %s  %d%% (%d/%d)  ok=%d fail=%d email=%d  success-rate=%d%%\n",
		time.Now().Format("15:04:05"), c.Status,
		progress.ProgressPct(c.Processed, c.TotalWebsites),
		c.Processed, c.TotalWebsites,
		c.Successful, c.Failed, c.EmailFallback,
		progress.SuccessRatePct(c.Successful, c.TotalWebsites))
}

func (a *app) lifecycleCmd(name, short string, run func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <campaign-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.refresher.All(ctx); err != nil {
				return err
			}
			if err := run(ctx, args[0]); err != nil {
				return err
			}
			c, _ := a.store.Campaign(args[0])
			fmt.Printf("campaign %s is now %s\n", args[0], c.Status)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.refresher.All(ctx); err != nil {
				return err
			}
			if err := a.dispatcher.Delete(ctx, args[0], yes); err != nil {
				return err
			}
			fmt.Printf("campaign %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the delete")
	return cmd
}

func (a *app) duplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <campaign-id>",
		Short: "Create a draft copy of a campaign's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.refresher.All(ctx); err != nil {
				return err
			}
			dup, err := a.dispatcher.Duplicate(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created draft %s (%s)\n", dup.ID, dup.Name)
			return nil
		},
	}
}

func (a *app) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <campaign-id> <submission-id>",
		Short: "Retry a failed submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.refresher.Campaign(ctx, args[0]); err != nil {
				return err
			}
			if err := a.dispatcher.RetrySubmission(ctx, args[1]); err != nil {
				return err
			}
			fmt.Printf("submission %s requeued\n", args[1])
			return nil
		},
	}
}

func (a *app) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics <campaign-id>",
		Short: "Print the campaign analytics rollup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.refresher.Campaign(ctx, args[0]); err != nil {
				return err
			}
			engine := analytics.NewEngine(a.store)
			rollup, err := engine.CampaignRollup(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rollup, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
