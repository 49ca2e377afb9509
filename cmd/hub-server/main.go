package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"hobbyhub-backend/lib/configutil"
	"hobbyhub-backend/lib/cronutil"
	"hobbyhub-backend/lib/scrapers/shift"
	"hobbyhub-backend/lib/serviceutil"
	"hobbyhub-backend/lib/telemetry"
	"hobbyhub-backend/services/accounts"
	"hobbyhub-backend/services/shiftkeys"
	"hobbyhub-backend/services/shiftkeys/server"
	"hobbyhub-backend/services/shiftkeys/sources/codearchive"
	"hobbyhub-backend/services/shiftkeys/sources/shiftapi"

	_ "modernc.org/sqlite"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(*verbose)
	tel, err := telemetry.SetupFromEnv(ctx, "hub-server")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("setup telemetry", err)
	}
	if err == nil {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	database, err := sql.Open("sqlite", cfg.Accounts.DbFile)
	if err != nil {
		serviceutil.Fatal("open accounts db", err)
	}
	accountStore, err := accounts.NewService(database, cfg.Accounts.EncryptionSecret)
	if err != nil {
		serviceutil.Fatal("init accounts", err)
	}

	shiftService := initShift(cfg, accountStore)

	if cfg.Shift.SweepCron != "" {
		startSweepSchedule(ctx, cfg, shiftService)
	}

	srv := server.NewServer(shiftService)
	go serviceutil.StartHttpServer(cfg.Port, srv.Handler())
	<-ctx.Done()
}

func initShift(cfg Config, accountStore accounts.Service) shiftkeys.Service {
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

	return shiftkeys.NewService(accountStore, sources, factory)
}

func startSweepSchedule(ctx context.Context, cfg Config, shiftService shiftkeys.Service) {
	lookback := time.Duration(cfg.Shift.SweepLookbackHours * float64(time.Hour))
	mailer := shiftkeys.ReportMailer{Smtp: cfg.Report.Smtp}

	scheduler := cronutil.New()
	_, err := scheduler.AddFunc(cfg.Shift.SweepCron, cronutil.SkipIfRunning("shift-sweep", func() {
		result, err := shiftService.Sweep(ctx, lookback)
		if err != nil {
			slog.ErrorContext(ctx, "scheduled sweep failed", "err", err)
			return
		}
		slog.InfoContext(
			ctx, "scheduled sweep finished",
			"keys", result.Summary.TotalKeys,
			"succeeded", result.Summary.TotalSucceeded,
			"failed", result.Summary.TotalFailed,
		)

		if cfg.Report.Enabled && result.Summary.TotalKeys > 0 {
			err := mailer.SendSweepReport(ctx, result)
			if err != nil {
				slog.ErrorContext(ctx, "failed to email sweep report", "err", err)
			}
		}
	}))
	if err != nil {
		serviceutil.Fatal("schedule sweep", err)
	}

	slog.Info("scheduled sweeps", "cron", cfg.Shift.SweepCron, "lookback", lookback)
}
