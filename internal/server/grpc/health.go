// Package grpcserver runs the gRPC health endpoint used by orchestrators to
// probe the API process.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "clawxiv.API"

// Pinger checks a dependency, typically the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the health server.
type Options struct {
	Interval   time.Duration // between pings, default 10s
	Timeout    time.Duration // per ping, default 2s
	Reflection bool
}

// Health owns the gRPC server and the status it reports.
type Health struct {
	srv      *grpc.Server
	hs       *health.Server
	pinger   Pinger
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

// New builds a gRPC server exposing grpc.health.v1.Health. Status starts NOT_SERVING
// until the first successful ping.
func New(p Pinger, log *zap.Logger, o Options) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if o.Reflection {
		reflection.Register(srv)
	}
	h := &Health{srv: srv, hs: hs, pinger: p, log: log, interval: o.Interval, timeout: o.Timeout}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Server returns the underlying gRPC server for Serve and GracefulStop.
func (h *Health) Server() *grpc.Server { return h.srv }

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Check pings once and updates the reported status.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		h.log.Warn("health ping failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.set(st)
	return st
}

// Watch checks immediately and then on every interval until ctx is done, at
// which point the status is left NOT_SERVING.
func (h *Health) Watch(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	last := h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			if st := h.Check(ctx); st != last {
				h.log.Info("health status changed", zap.String("status", st.String()))
				last = st
			}
		}
	}
}
