package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/config"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	defaults := config.DefaultConfig().Server
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OCR HTTP server",
		Long: `Serve the OCR pipeline over HTTP.

Endpoints:
  POST /v1/ocr       multipart field "image"; ?format=json|csv|text
  POST /v1/ocr/pdf   multipart field "pdf"; optional "pages" and "password"
  GET  /ws/ocr       send binary image frames, receive one message per record
  GET  /health       liveness and memory statistics
  GET  /metrics      Prometheus metrics

Examples:
  cyrocr serve
  cyrocr serve --host 0.0.0.0 --port 9090 --rate-limit 60`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServer(cmd)
		},
	}

	f := cmd.Flags()
	f.String("host", defaults.Host, "address to bind")
	f.IntP("port", "p", defaults.Port, "port to listen on")
	f.String("cors-origin", defaults.CORSOrigin, "value of Access-Control-Allow-Origin")
	f.Int("max-upload-mb", defaults.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", defaults.TimeoutSec, "per-request processing timeout in seconds")
	f.Int("shutdown-timeout", defaults.ShutdownTimeout, "graceful shutdown timeout in seconds")
	f.Int("rate-limit", defaults.RequestsPerMinute, "OCR requests per minute per client (0 disables)")

	f.String("hparams", "", "model hyperparameter JSON")
	f.String("weights", "", "recognizer ONNX weights")
	f.String("detector", config.DefaultConfig().Pipeline.Detector.Backend, "detector backend")
	f.String("det-model", "", "override detection model path")
	f.Int("region-workers", config.DefaultConfig().Pipeline.RegionWorkers, "regions recognized concurrently per image")
	f.Int("warmup", 0, "recognizer warmup iterations before serving")
	f.Bool("gpu", false, "enable GPU acceleration using CUDA")
	return cmd
}

func (a *app) runServer(cmd *cobra.Command) error {
	sc := a.cfg.Server

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(reg)

	proc, err := a.newProcessor(a.cfg, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize OCR pipeline: %w", err)
	}
	defer func() {
		if cerr := proc.Close(); cerr != nil {
			slog.Warn("Failed to close pipeline", "error", cerr)
		}
	}()

	srv := server.NewServer(server.Config{
		Host:              sc.Host,
		Port:              sc.Port,
		CORSOrigin:        sc.CORSOrigin,
		MaxUploadMB:       int64(sc.MaxUploadMB),
		TimeoutSec:        sc.TimeoutSec,
		RequestsPerMinute: sc.RequestsPerMinute,
	}, proc, metrics)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
