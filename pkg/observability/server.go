package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	// MetricsPath is the Prometheus scrape path.
	MetricsPath = "/metrics"
	// HealthPath is the liveness path.
	HealthPath = "/healthz"

	readHeaderTimeout = 5 * time.Second
)

// ErrNoMetricsHandler is returned when the metrics server has nothing to serve.
var ErrNoMetricsHandler = errors.New("metrics handler is nil")

// HealthHandler returns an [http.Handler] that always answers {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)

		data, err := json.Marshal(map[string]string{"status": "ok"})
		if err != nil {
			return
		}

		_, _ = rw.Write(data)
	})
}

// MetricsServer serves /metrics and /healthz for the lifetime of a run.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	done   chan error
	logger *slog.Logger
}

// StartMetricsServer listens on addr and serves metrics in the background.
func StartMetricsServer(addr string, metrics http.Handler, logger *slog.Logger) (*MetricsServer, error) {
	if metrics == nil {
		return nil, ErrNoMetricsHandler
	}

	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, metrics)
	mux.Handle(HealthPath, HealthHandler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	ms := &MetricsServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		ln:     ln,
		done:   make(chan error, 1),
		logger: logger,
	}

	go func() {
		serveErr := ms.srv.Serve(ln)
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}

		ms.done <- serveErr
	}()

	logger.Info("metrics server listening", "addr", ln.Addr().String())

	return ms, nil
}

// Addr returns the bound listen address.
func (ms *MetricsServer) Addr() string {
	return ms.ln.Addr().String()
}

// Shutdown stops the server and waits for the serve loop to exit.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	err := ms.srv.Shutdown(ctx)
	serveErr := <-ms.done

	if err != nil || serveErr != nil {
		return errors.Join(err, serveErr)
	}

	ms.logger.Debug("metrics server stopped")

	return nil
}
