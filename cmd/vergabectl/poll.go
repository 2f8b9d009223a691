package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/vergabeflow/internal/gcp"
	"github.com/Lllllllleong/vergabeflow/internal/metrics"
	"github.com/Lllllllleong/vergabeflow/internal/services"
	"github.com/spf13/cobra"
)

func pollCmd() *cobra.Command {
	var (
		metricsAddr string
		noWorkflow  bool
	)
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Claim pending generation commands and write the documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPoll(ctx, metricsAddr, noWorkflow)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", gcp.GetEnv("METRICS_ADDR", ":9090"), "Address for the Prometheus endpoint, empty to disable")
	cmd.Flags().BoolVar(&noWorkflow, "no-workflow", false, "Do not trigger the publication workflow")
	return cmd
}

func runPoll(ctx context.Context, metricsAddr string, noWorkflow bool) error {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := gcp.GetEnv("GENERATED_DOCUMENTS_BUCKET", "")
	if bucket == "" {
		return fmt.Errorf("GENERATED_DOCUMENTS_BUCKET must be set")
	}
	cfg, err := services.PollerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load poller config: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return err
	}
	store := services.NewFirestoreStore(firestoreClient, gcp.CollectionsFromEnv())
	defer store.Close()

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	defer storageClient.Close()

	gen, closeGen, err := services.GeneratorFromEnv(ctx, projectID)
	if err != nil {
		return err
	}
	defer closeGen()

	var workflow services.WorkflowTrigger
	if !noWorkflow {
		launcher, err := gcp.NewWorkflowLauncher(ctx, projectID,
			gcp.GetEnv("WORKFLOW_LOCATION", "europe-west3"),
			gcp.GetEnv("WORKFLOW_ID", "vergabe-publication"))
		if err != nil {
			return err
		}
		defer launcher.Close()
		workflow = launcher
	}

	m := metrics.New()
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("Serving metrics.", "addr", metricsAddr)
	}

	poller := services.NewCommandPoller(cfg, store, gen, gcp.NewBucketWriter(storageClient, bucket), workflow, m)
	return poller.Run(ctx)
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
