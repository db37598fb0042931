package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourceplane/hostcheck/internal/config"
	"github.com/sourceplane/hostcheck/internal/job"
	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/metrics"
	"github.com/sourceplane/hostcheck/internal/model"
	"github.com/sourceplane/hostcheck/internal/render"
	"github.com/sourceplane/hostcheck/internal/runner"
	"github.com/sourceplane/hostcheck/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errVerificationFailed = errors.New("verification failed")

var (
	runMetricsAddr string
	runJSON        bool
	runTimeout     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a job, stream its events and print the verdict",
	Long:  "Compile and audit a job, execute it against its target host over SSH, and exit non-zero unless every criterion passes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd)
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&dslFile, "file", "f", "job.yaml", "Job file path (JSON or YAML)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the job runs")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the verification result as JSON")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Give up waiting for the verdict after this long (0 waits forever)")
}

func runJob(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	data, err := loader.ReadDocument(dslFile)
	if err != nil {
		return err
	}
	payload, err := assignJobID(data)
	if err != nil {
		return err
	}

	cat, err := loader.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	transport, err := runner.NewSSHTransport(runner.SSHConfig{
		User:        cfg.SSH.User,
		Port:        cfg.SSH.Port,
		KeyPath:     cfg.SSH.KeyPath,
		DialTimeout: cfg.SSH.DialTimeout.Duration(),
	})
	if err != nil {
		return err
	}

	writer, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if runMetricsAddr != "" {
		srv := serveMetrics(runMetricsAddr, reg, logger)
		defer srv.Close()
	}

	orch, err := job.New(cat,
		runner.NewRunner(transport, runner.WithLogger(logger)),
		job.WithStore(writer),
		job.WithLogger(logger),
		job.WithMetrics(metrics.New(reg)),
		job.WithMaxConcurrent(cfg.Jobs.MaxConcurrent),
	)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := orch.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not complete", zap.Error(err))
		}
	}()

	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	id, err := orch.Submit(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "□ Submitted job %s\n", id)

	events, err := orch.Events(ctx, id)
	if err != nil {
		return err
	}
	for ev := range events {
		fmt.Fprintln(out, render.FormatEvent(ev))
	}

	res, err := orch.Wait(ctx, id)
	if err != nil {
		return err
	}
	if err := printResult(out, res); err != nil {
		return err
	}
	if res.Status != model.StatusSuccess {
		return errVerificationFailed
	}
	return nil
}

// assignJobID gives the document a random job_id when it has none. Input
// that does not decode to an object is returned unchanged so the schema
// check reports it.
func assignJobID(data []byte) ([]byte, error) {
	doc, err := loader.DecodeDocument(data)
	if err != nil {
		return data, nil
	}
	fields, ok := doc.(map[string]interface{})
	if !ok {
		return data, nil
	}
	if id, _ := fields["job_id"].(string); id != "" {
		return data, nil
	}
	fields["job_id"] = uuid.NewString()
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return out, nil
}

// openStore builds the configured record writer, mirrored to NATS when an
// events URL is set. The returned func releases every connection.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Writer, func(), error) {
	var (
		writer  store.Writer
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Store.Backend {
	case config.BackendEtcd:
		etcd, err := store.NewEtcdWriter(store.EtcdConfig{
			Endpoints:   cfg.Store.Etcd.Endpoints,
			Prefix:      cfg.Store.Etcd.Prefix,
			DialTimeout: cfg.Store.Etcd.DialTimeout.Duration(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := etcd.Close(); err != nil {
				logger.Warn("failed to close etcd client", zap.Error(err))
			}
		})
		writer = etcd
	default:
		writer = store.NewMemory()
	}

	if cfg.Events.NatsURL != "" {
		nc, err := nats.Connect(cfg.Events.NatsURL, nats.Name("hostcheck"))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.NatsURL, err)
		}
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain NATS connection", zap.Error(err))
			}
		})
		writer = store.NewMirror(writer, nc, cfg.Events.SubjectPrefix)
	}

	return writer, closeAll, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func printResult(out io.Writer, res *model.VerificationResult) error {
	if runJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, render.ViewResult(res))
	return nil
}
