// Package health serves liveness and readiness over HTTP and the standard
// gRPC health protocol.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check is a named dependency check run by /readyz.
type Check struct {
	Name  string
	Check func(context.Context) error
}

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "salonbook"

const checkTimeout = 2 * time.Second

// run returns one "name: error" entry per failing check.
func run(ctx context.Context, checks []Check) []string {
	var failures []string
	for _, c := range checks {
		if c.Check == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()
		if err != nil {
			name := c.Name
			if name == "" {
				name = "dependency"
			}
			failures = append(failures, name+": "+err.Error())
		}
	}
	return failures
}

// NewMux serves /healthz (always ok) and /readyz (ok only if every check passes).
func NewMux(checks ...Check) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := run(r.Context(), checks); len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failures, "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// ServeHTTP runs handler on addr until ctx is done.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("addr", addr).Msg("HTTP server error")
	}
}

// GRPCServer publishes the readiness checks through grpc.health.v1.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []Check
	interval time.Duration
	logger   *zerolog.Logger
}

func NewGRPCServer(logger *zerolog.Logger, checks ...Check) *GRPCServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{server: srv, health: hs, checks: checks, interval: 10 * time.Second, logger: logger}
}

// refresh re-runs the checks and updates the served status.
func (g *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := run(ctx, g.checks); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		g.logger.Warn().Strs("failures", failures).Msg("readiness check failed")
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Serve listens on addr until ctx is done, refreshing the status periodically.
func (g *GRPCServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	g.refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.refresh(ctx)
			}
		}
	}()

	g.logger.Info().Str("addr", addr).Msg("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
