package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/meridian-social/meridian/internal/config"
	"github.com/meridian-social/meridian/internal/indexing"
	"github.com/meridian-social/meridian/internal/infra/database"
	"github.com/meridian-social/meridian/internal/infra/repository"
	"github.com/meridian-social/meridian/internal/present/rest"
	"github.com/meridian-social/meridian/internal/present/rest/middleware"
	"github.com/meridian-social/meridian/internal/service"
	"github.com/meridian-social/meridian/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	relRepo := repository.NewRelationshipRepository(db)
	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db, mc)
	feedRepo := repository.NewFeedRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	relEngine := usecase.NewRelationshipEngine(relRepo)
	hydrator := usecase.NewHydrator(postRepo, profileRepo, relEngine)
	feeds := usecase.NewFeedUsecase(feedRepo, hydrator)
	threads := usecase.NewThreadUsecase(threadRepo, hydrator)
	notifications := usecase.NewNotificationUsecase(notifRepo, hydrator)

	engine := indexing.NewEngine(db)
	signal := service.NewSignalService(rdb)

	handler := rest.NewHandler(conf, engine, feeds, threads, notifications, signal)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.NodeInfo.FQDN))
	}
	e.Use(middleware.IdentifyViewer)

	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTraceProvider(endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("meridian"),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return func() {
		provider.Shutdown(context.Background())
	}, nil
}
