package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/shopbot/config"
	"github.com/talkincode/shopbot/internal/adminapi"
	"github.com/talkincode/shopbot/internal/app"
	"github.com/talkincode/shopbot/internal/bot"
	"github.com/talkincode/shopbot/internal/export"
	"github.com/talkincode/shopbot/internal/flow"
	"github.com/talkincode/shopbot/internal/imgproc"
	"github.com/talkincode/shopbot/internal/ocr"
	"github.com/talkincode/shopbot/internal/store"
	"github.com/talkincode/shopbot/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	h        = flag.Bool("h", false, "help usage")
	conffile = flag.String("c", "shopbot.yml", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	dropall  = flag.Bool("x", false, "drop all tables, then exit")
)

func main() {
	flag.Parse()
	if *h {
		fmt.Fprintf(os.Stderr, "Usage: %s [-c shopbot.yml] [-initdb] [-x]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg := config.LoadConfig(*conffile)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.InitDirs(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *dropall {
		application.DropAll()
		return
	}
	if *initdb {
		application.InitDb()
		return
	}

	gdb := application.DB()
	catalog := store.NewGormCatalogRepository(gdb)
	orders := store.NewGormOrderRepository(gdb)
	exporter := export.NewService(catalog, orders)

	engineName := application.GetSettingsStringValue("ocr", "Engine")
	if engineName == "" {
		engineName = cfg.Ocr.Engine
	}
	recognizer := ocr.NewClient(ocr.Config{
		Url:     cfg.Ocr.Url,
		Apikey:  cfg.Ocr.Apikey,
		Engine:  engineName,
		Timeout: cfg.Ocr.TimeoutDuration(),
		Retries: cfg.Ocr.Retries,
	})

	engine := flow.NewEngine(
		application.SessionStore(),
		catalog,
		orders,
		imgproc.NewNormalizer(),
		recognizer,
		exporter,
		flow.Config{CatalogLimit: int(application.GetSettingsInt64Value("catalog", "PageSize"))},
	)

	gateway, err := bot.New(application, engine)
	if err != nil {
		zap.L().Fatal("failed to start chat gateway", zap.Error(err))
	}

	web := webserver.Init(application)
	adminapi.InitRouter()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Start(ctx)
	})
	g.Go(func() error {
		return web.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("shutdown with error", zap.Error(err))
	}
	zap.L().Info("shopbot stopped")
}
