package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/internal/config"
	"github.com/sells-group/workflow-report-cli/internal/notify"
	"github.com/sells-group/workflow-report-cli/internal/pipeline"
	"github.com/sells-group/workflow-report-cli/internal/runlog"
	"github.com/sells-group/workflow-report-cli/internal/storage"
	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

var fetchParams pipeline.Params

var (
	fetchProfile   string
	fetchOutputDir string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch workflow logs and generate a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyConfigDefaults(&fetchParams, cfg, cmd.Flags().Changed)
		if fetchProfile != "" {
			prof, ok := cfg.Profiles[fetchProfile]
			if !ok {
				return eris.Errorf("unknown profile %q", fetchProfile)
			}
			applyProfile(&fetchParams, prof, cmd.Flags().Changed)
		}
		if err := fetchParams.Validate(); err != nil {
			return err
		}

		opts := []dify.Option{}
		if fetchParams.ConsoleToken != "" {
			opts = append(opts, dify.WithConsoleToken(fetchParams.ConsoleToken))
		}
		if fetchParams.ConsoleEmail != "" && fetchParams.ConsolePassword != "" {
			opts = append(opts, dify.WithConsoleCredentials(fetchParams.ConsoleEmail, fetchParams.ConsolePassword))
		}
		if cfg.Dify.ConsoleRate > 0 {
			opts = append(opts, dify.WithConsoleRateLimit(cfg.Dify.ConsoleRate))
		}
		if cfg.Dify.RetryAttempts > 0 {
			opts = append(opts, dify.WithRetryConfig(cfg.Dify.RetryAttempts, time.Second, 10*time.Second))
		}
		client := dify.NewClient(fetchParams.BaseURL, fetchParams.APIToken, opts...)

		outputDir := fetchOutputDir
		if outputDir == "" {
			outputDir = cfg.Storage.Dir
		}
		store, err := storage.NewLocalStore(outputDir, zap.L())
		if err != nil {
			return err
		}

		ledger, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close()

		var notifier notify.Notifier
		if cfg.Notify.WebhookURL != "" {
			notifier = notify.NewWebhook(cfg.Notify.WebhookURL, zap.L())
		}

		p := pipeline.New(client, store, ledger, notifier, zap.L())
		result, err := p.Run(ctx, fetchParams)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		fmt.Printf("Run %s: %d records (total %d)\n", result.RunID, result.Records, result.Total)
		for _, path := range result.ReportPaths {
			fmt.Println("  " + path)
		}
		if result.DataPath != "" {
			fmt.Println("  " + result.DataPath)
		}
		return nil
	},
}

// applyConfigDefaults fills params from config for everything not set on
// the command line.
func applyConfigDefaults(p *pipeline.Params, cfg *config.Config, changed func(string) bool) {
	if !changed("base-url") && cfg.Dify.BaseURL != "" {
		p.BaseURL = cfg.Dify.BaseURL
	}
	if !changed("api-token") && cfg.Dify.APIToken != "" {
		p.APIToken = cfg.Dify.APIToken
	}
	if !changed("app-id") && cfg.Dify.AppID != "" {
		p.AppID = cfg.Dify.AppID
	}
	if p.ConsoleEmail == "" {
		p.ConsoleEmail = cfg.Dify.ConsoleEmail
	}
	if p.ConsolePassword == "" {
		p.ConsolePassword = cfg.Dify.ConsolePassword
	}
	if p.ConsoleToken == "" {
		p.ConsoleToken = cfg.Dify.ConsoleToken
	}
	if !changed("limit") && cfg.Output.Limit > 0 {
		p.Limit = cfg.Output.Limit
	}
	if !changed("format") && cfg.Output.Format != "" {
		p.Format = cfg.Output.Format
	}
}

// applyProfile overlays a named profile onto params. Explicit command-line
// flags always win over profile values.
func applyProfile(p *pipeline.Params, prof config.Profile, changed func(string) bool) {
	if prof.Status != "" && !changed("status") {
		p.Status = prof.Status
	}
	if prof.Keyword != "" && !changed("keyword") {
		p.Keyword = prof.Keyword
	}
	if prof.Limit > 0 && !changed("limit") {
		p.Limit = prof.Limit
	}
	if prof.FetchAll && !changed("all") {
		p.FetchAll = true
	}
	if prof.WithDetails && !changed("with-details") {
		p.WithDetails = true
	}
	if prof.WithNodeExecutions && !changed("with-node-executions") {
		p.WithNodeExecutions = true
	}
	if prof.Format != "" && !changed("format") {
		p.Format = prof.Format
	}
	if prof.CreatedAtBefore != "" && !changed("created-before") {
		p.CreatedAtBefore = prof.CreatedAtBefore
	}
	if prof.CreatedAtAfter != "" && !changed("created-after") {
		p.CreatedAtAfter = prof.CreatedAtAfter
	}
}

func openLedger(ctx context.Context) (*runlog.Ledger, error) {
	ledger, err := runlog.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	if err := ledger.Migrate(ctx); err != nil {
		ledger.Close()
		return nil, err
	}
	return ledger, nil
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchParams.BaseURL, "base-url", "", "Dify base URL")
	f.StringVar(&fetchParams.APIToken, "api-token", "", "workflow app API token")
	f.StringVar(&fetchParams.AppID, "app-id", "", "app ID for node execution lookups")
	f.StringVar(&fetchParams.ConsoleToken, "console-token", "", "console API access token")
	f.StringVar(&fetchParams.ConsoleEmail, "console-email", "", "console login email")
	f.StringVar(&fetchParams.ConsolePassword, "console-password", "", "console login password")
	f.IntVar(&fetchParams.Page, "page", 1, "page number")
	f.IntVar(&fetchParams.Limit, "limit", 20, "records per page (1-100)")
	f.BoolVar(&fetchParams.FetchAll, "all", false, "fetch all pages")
	f.IntVar(&fetchParams.MaxPages, "max-pages", 0, "page cap when fetching all (0 = unlimited)")
	f.StringVar(&fetchParams.Keyword, "keyword", "", "keyword filter")
	f.StringVar(&fetchParams.Status, "status", "", "status filter (succeeded|failed|stopped|partial-succeeded)")
	f.StringVar(&fetchParams.CreatedAtBefore, "created-before", "", "only logs created before this time (ISO 8601)")
	f.StringVar(&fetchParams.CreatedAtAfter, "created-after", "", "only logs created after this time (ISO 8601)")
	f.StringVar(&fetchParams.EndUserSessionID, "session-id", "", "end user session filter")
	f.StringVar(&fetchParams.AccountEmail, "account", "", "account email filter")
	f.BoolVar(&fetchParams.WithDetails, "with-details", false, "fetch workflow run details")
	f.BoolVar(&fetchParams.WithNodeExecutions, "with-node-executions", false, "fetch node executions (needs console access)")
	f.StringVar(&fetchParams.Format, "format", "markdown", "report format (markdown|json|csv|xlsx)")
	f.BoolVar(&fetchParams.SaveData, "save-data", false, "also save the raw enriched data as JSON")
	f.BoolVar(&fetchParams.NotifyOnComplete, "notify", false, "post a completion summary to the configured webhook")
	f.StringVar(&fetchProfile, "profile", "", "named parameter profile from config")
	f.StringVar(&fetchOutputDir, "output-dir", "", "output directory (overrides config)")
	rootCmd.AddCommand(fetchCmd)
}
