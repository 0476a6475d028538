// Command eventstream provisions the configured topics and publishes a heartbeat
// event to each of them until it receives SIGINT or SIGTERM, then drains and
// closes every producer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harphies/go.eventstream.io/config"
	"github.com/harphies/go.eventstream.io/messaging/kafka"
	"github.com/harphies/go.eventstream.io/middlewares"
	"github.com/harphies/go.eventstream.io/observability/logging"
	"github.com/harphies/go.eventstream.io/observability/prommetrics"
	"github.com/harphies/go.eventstream.io/observability/tracing"
	httpserver "github.com/harphies/go.eventstream.io/server/http"
	"github.com/harphies/go.eventstream.io/utils"
)

func main() {
	configPath := pflag.StringP("config", "c", utils.GetEnv("EVENTSTREAM_CONFIG", ""), "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := kafka.NewDriver(&cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("failed to select kafka driver", zap.Error(err))
	}

	if err := run(ctx, cfg, logger, driver); err != nil {
		logger.Error("eventstream stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("eventstream stopped")
}

// run owns everything between config loading and process exit. It returns once
// ctx is cancelled and all publishers are shut down, or as soon as one of the
// long-running tasks fails.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger, driver kafka.Driver) (err error) {
	shutdownTracing, err := tracing.Setup(ctx, logger, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, shutdownTracing(context.Background()))
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	provisionMetrics := prommetrics.NewOperationMetrics(prommetrics.DefaultPromMetricsNamespace, "kafka", "provisioner")
	provisionMetrics.MustRegister(reg)
	publishMetrics := prommetrics.NewOperationMetrics(prommetrics.DefaultPromMetricsNamespace, "kafka", "publisher")
	publishMetrics.MustRegister(reg)

	admin, err := driver.NewAdmin(&cfg.Kafka)
	if err != nil {
		return fmt.Errorf("open admin client: %w", err)
	}
	provisioner := kafka.NewTopicProvisioner(logger, admin, kafka.WithProvisionerMetrics(provisionMetrics))
	defer func() {
		err = multierr.Append(err, provisioner.Close())
	}()

	keySer, valueSer, err := kafka.NewSerializers(&cfg.Kafka)
	if err != nil {
		return err
	}

	registry := kafka.NewTopicRegistry()
	limiter := middlewares.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.MaxConcurrent)
	routes := middlewares.ClientInfo(limiter.Limit(newRoutes(reg, registry)), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(utils.Recoverable(logger, "ops-server", func() error {
		return httpserver.Serve(gctx, logger, routes, cfg.Server.Port)
	}))

	for _, spec := range cfg.Topics {
		hb := &heartbeat{
			spec:        spec,
			cfg:         &cfg.Kafka,
			settings:    cfg.Publisher,
			serviceName: cfg.ServiceName,
			registry:    registry,
			provisioner: provisioner,
			factory:     driver,
			logger:      logger,
			opts: []kafka.PublisherOption{
				kafka.WithLogger(logger),
				kafka.WithMetrics(publishMetrics),
				kafka.WithKeySerializer(keySer),
				kafka.WithValueSerializer(valueSer),
				kafka.WithHeaders(kafka.Header{Key: "producer", Value: []byte(cfg.ServiceName)}),
			},
		}
		g.Go(utils.Recoverable(logger, "heartbeat-"+spec.Name, func() error {
			return hb.run(gctx)
		}))
	}

	return g.Wait()
}

func newRoutes(gatherer prometheus.Gatherer, registry *kafka.TopicRegistry) *http.ServeMux {
	mux := http.NewServeMux()
	prommetrics.RegisterMetrics(mux, gatherer)
	if utils.GetEnvBool("EVENTSTREAM_PPROF", false) {
		prommetrics.RegisterProfiler(mux)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/topics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"topics": registry.Known()})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
