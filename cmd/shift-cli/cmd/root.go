package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"hobbyhub-backend/lib/configutil"
	"hobbyhub-backend/lib/scrapers/shift"
	"hobbyhub-backend/lib/telemetry"
	"hobbyhub-backend/services/accounts"
	"hobbyhub-backend/services/shiftkeys"
	"hobbyhub-backend/services/shiftkeys/sources/codearchive"
	"hobbyhub-backend/services/shiftkeys/sources/shiftapi"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

// mirrors the shift/accounts sections of the hub-server config, the
// CLI drives the same engine directly instead of going through http
type config struct {
	Shift struct {
		BaseUrl  string `json:"base_url"`
		DebugDir string `json:"debug_dir"`
		Sources  struct {
			Archives []struct {
				Name string `json:"name"`
				Url  string `json:"url"`
			} `json:"archives"`
			Api *struct {
				Name         string `json:"name"`
				TokenUrl     string `json:"token_url"`
				CodesUrl     string `json:"codes_url"`
				ClientId     string `json:"client_id"`
				ClientSecret string `json:"client_secret"`
			} `json:"api"`
		} `json:"sources"`
	} `json:"shift"`
	Accounts struct {
		DbFile           string `json:"db_file"`
		EncryptionSecret string `json:"encryption_secret"`
	} `json:"accounts"`
}

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "shift-cli",
	Short: "shift-cli sweeps key sources and redeems SHiFT codes.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func Execute() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the hub config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func loadConfig() config {
	cfg, err := configutil.ReadConfig[config](configPath)
	if err != nil {
		fatal(fmt.Errorf("read config %s: %w", configPath, err))
	}
	return cfg
}

func openAccounts(cfg config) accounts.Service {
	database, err := sql.Open("sqlite", cfg.Accounts.DbFile)
	if err != nil {
		fatal(err)
	}
	store, err := accounts.NewService(database, cfg.Accounts.EncryptionSecret)
	if err != nil {
		fatal(err)
	}
	return store
}

func buildService(cfg config) shiftkeys.Service {
	var sources []shiftkeys.KeySource
	for _, archive := range cfg.Shift.Sources.Archives {
		sources = append(sources, codearchive.NewSource(codearchive.Options{
			Name:    archive.Name,
			PageUrl: archive.Url,
		}))
	}
	if api := cfg.Shift.Sources.Api; api != nil {
		sources = append(sources, shiftapi.NewSource(shiftapi.Options{
			Name:         api.Name,
			TokenUrl:     api.TokenUrl,
			CodesUrl:     api.CodesUrl,
			ClientId:     api.ClientId,
			ClientSecret: api.ClientSecret,
		}))
	}

	factory := func(ctx context.Context) (shiftkeys.Session, error) {
		client, err := shift.NewClient(shift.ClientOptions{
			BaseUrl:  cfg.Shift.BaseUrl,
			DebugDir: cfg.Shift.DebugDir,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	return shiftkeys.NewService(openAccounts(cfg), sources, factory)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func renderResults(results []shiftkeys.RedeemResult) {
	t := newTable()
	t.AppendHeader(table.Row{"Account", "Service", "Outcome", "Detail"})
	for _, r := range results {
		outcome := "redeemed"
		detail := ""
		if !r.Success {
			outcome = string(r.ErrorCode)
			detail = r.Message
		}
		t.AppendRow(table.Row{r.Email, r.Service, outcome, detail})
	}
	t.Render()
}
