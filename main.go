package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bluelink-bridge/internal/auth"
	"bluelink-bridge/internal/bluelink"
	commandsapp "bluelink-bridge/internal/commands/application"
	commands "bluelink-bridge/internal/commands/domain"
	commandsmqtt "bluelink-bridge/internal/commands/interfaces/mqtt"
	"bluelink-bridge/internal/config"
	"bluelink-bridge/internal/eventing"
	"bluelink-bridge/internal/history"
	"bluelink-bridge/internal/httpapi"
	transport "bluelink-bridge/internal/mqtt"
	"bluelink-bridge/internal/observability/metrics"
	"bluelink-bridge/internal/resilience"
	"bluelink-bridge/internal/vehicles"
	vehiclesmqtt "bluelink-bridge/internal/vehicles/interfaces/mqtt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)
	metrics.Init(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventing.NewInMemoryBus()

	api, err := bluelink.NewClient(cfg.Bluelink.BaseURL, bluelink.Credentials{
		Username: cfg.Bluelink.Username,
		Password: cfg.Bluelink.Password,
		PIN:      cfg.Bluelink.PIN,
	}, logger)
	if err != nil {
		logger.Fatalf("bluelink client error: %v", err)
	}
	classifier := bluelink.NewErrorClassifier(cfg.Bluelink.AuthPatterns)

	breaker := resilience.NewCircuitBreaker(logger)
	coordinator, err := resilience.NewRefreshCoordinator(api.Authenticate, logger)
	if err != nil {
		logger.Fatalf("refresh coordinator error: %v", err)
	}
	rc, err := resilience.NewClient(breaker, coordinator, classifier.IsAuthExpired, logger)
	if err != nil {
		logger.Fatalf("resilient client error: %v", err)
	}
	controller, err := bluelink.NewController(api, rc, logger)
	if err != nil {
		logger.Fatalf("controller error: %v", err)
	}

	refreshService, err := vehicles.NewRefreshService(controller, bus, logger)
	if err != nil {
		logger.Fatalf("refresh service error: %v", err)
	}

	tracker := commandsapp.NewTracker(logger)
	dispatcher, err := commandsapp.NewDispatcher(controller, logger)
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}
	poller, err := commandsapp.NewPoller(controller, tracker, bus, refreshService, logger,
		commandsapp.WithPollInterval(cfg.Bridge.PollInterval),
		commandsapp.WithTimeouts(commandTimeouts(cfg.Bridge.CommandTimeouts)),
	)
	if err != nil {
		logger.Fatalf("poller error: %v", err)
	}
	gateway, err := commandsapp.NewGateway(dispatcher, tracker, poller, bus, logger,
		commandsapp.WithThrottleInterval(cfg.Bridge.ThrottleInterval),
		commandsapp.WithQueueSize(cfg.Bridge.QueueSize),
	)
	if err != nil {
		logger.Fatalf("gateway error: %v", err)
	}

	var historyRepo *history.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		historyRepo, err = history.NewRepository(db)
		if err != nil {
			logger.Fatalf("history repo error: %v", err)
		}
		if err := historyRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("history schema error: %v", err)
		}
		recorder, err := history.NewRecorder(historyRepo, logger)
		if err != nil {
			logger.Fatalf("history recorder error: %v", err)
		}
		recorder.Register(bus)
	} else {
		logger.Printf("no database configured, command history disabled")
	}

	topics, err := transport.NewTopics(cfg.MQTT.BaseTopic)
	if err != nil {
		logger.Fatalf("topic scheme error: %v", err)
	}
	broker, err := transport.NewClient(transport.Options{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		QoS:       byte(cfg.MQTT.QoS),
	}, topics.AvailabilityTopic(), logger)
	if err != nil {
		logger.Fatalf("mqtt client error: %v", err)
	}

	statusConsumer, err := commandsmqtt.NewStatusConsumer(broker, topics, logger)
	if err != nil {
		logger.Fatalf("status consumer error: %v", err)
	}
	statusConsumer.Register(bus)
	dataConsumer, err := vehiclesmqtt.NewDataConsumer(broker, topics, logger)
	if err != nil {
		logger.Fatalf("data consumer error: %v", err)
	}
	dataConsumer.Register(bus)

	if err := api.Authenticate(ctx); err != nil {
		logger.Fatalf("bluelink authentication error: %v", err)
	}

	if err := broker.Connect(); err != nil {
		logger.Fatalf("mqtt connect error: %v", err)
	}
	defer broker.Disconnect()

	err = broker.Subscribe(topics.CommandFilter(), func(topic string, payload []byte) {
		vehicleID, kind, err := topics.ParseCommandTopic(topic)
		if err != nil {
			logger.Printf("ignoring message on %s: %v", topic, err)
			return
		}
		// Data refresh requests share the command topic tree but
		// bypass the dispatch pipeline.
		if kind == "refresh" {
			req, err := vehicles.ParseRefreshRequest(string(payload))
			if err != nil {
				logger.Printf("refresh request for %s rejected: %v", vehicleID, err)
				return
			}
			go func() {
				if err := refreshService.Refresh(ctx, vehicleID, req); err != nil {
					logger.Printf("refresh for %s failed: %v", vehicleID, err)
				}
			}()
			return
		}
		gateway.HandleInboundCommand(commandsapp.InboundCommand{
			TargetID: vehicleID,
			Kind:     kind,
			Payload:  payload,
		})
	})
	if err != nil {
		logger.Fatalf("command subscription error: %v", err)
	}

	go gateway.Run(ctx)

	if cfg.Bridge.InitialRefresh {
		go initialRefresh(ctx, controller, refreshService, logger)
	}

	mux := http.NewServeMux()
	actionsHandler, err := httpapi.NewActionsHandler(tracker)
	if err != nil {
		logger.Fatalf("actions handler error: %v", err)
	}
	historyHandler := httpapi.NewHistoryHandler(historyRepo)
	mux.Handle("/api/v1/actions", actionsHandler)
	mux.Handle("/api/v1/history", historyHandler)
	mux.Handle("/api/v1/history/", historyHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy(nil, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(handler)
	} else {
		logger.Printf("no jwt secret configured, admin api is unauthenticated")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	touchReadiness(cfg.Bridge.ReadinessFile, logger)
	defer removeReadiness(cfg.Bridge.ReadinessFile)

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	poller.Wait()
}

func commandTimeouts(raw map[string]time.Duration) map[commands.CommandKind]time.Duration {
	out := make(map[commands.CommandKind]time.Duration, len(raw))
	for kind, timeout := range raw {
		out[commands.CommandKind(strings.ToLower(kind))] = timeout
	}
	return out
}

func initialRefresh(ctx context.Context, controller *bluelink.Controller, refreshService *vehicles.RefreshService, logger *log.Logger) {
	list, err := controller.ListVehicles(ctx)
	if err != nil {
		logger.Printf("initial vehicle listing failed: %v", err)
		return
	}
	logger.Printf("found %d vehicle(s)", len(list))
	for _, vehicle := range list {
		if err := refreshService.Refresh(ctx, vehicle.ID, vehicles.RefreshRequest{Strategy: vehicles.StrategyCached}); err != nil {
			logger.Printf("initial refresh for %s failed: %v", vehicle.ID, err)
		}
	}
}

func touchReadiness(path string, logger *log.Logger) {
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte("ready"), 0o644); err != nil {
		logger.Printf("write readiness file: %v", err)
	}
}

func removeReadiness(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}
