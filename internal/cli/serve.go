package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ingest/internal/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().String("static", "", "Directory of static web assets to serve at /")
	serveCmd.Flags().Bool("watch", false, "Also process the configured inbox directory")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversion API",
	Long: `Serve the HTTP API: POST /api/convert, GET /api/banks, GET /api/health,
archived jobs under /api/jobs when archive.dir is set, and Prometheus metrics
at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	static, _ := cmd.Flags().GetString("static")
	watch, _ := cmd.Flags().GetBool("watch")

	p, err := newPipeline()
	if err != nil {
		return err
	}
	sink, store, err := archive()
	if err != nil {
		return err
	}

	h := &api.Handler{
		Pipeline:  p,
		Logger:    logger,
		Version:   rootCmd.Version,
		StaticDir: static,
	}
	if sink != nil {
		h.Store = store
		h.Sinks = append(h.Sinks, sink)
	}
	app := h.App(cfg.Server.BodyLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inbox chan error
	if watch {
		svc, err := inboxService(p, sink)
		if err != nil {
			return err
		}
		inbox = make(chan error, 1)
		go func() { inbox <- svc.Run(ctx) }()
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", addr)
		errc <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			stop()
			if inbox != nil {
				<-inbox
			}
			return err
		}
	}

	logger.Info("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = app.ShutdownWithContext(shutdown)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if inbox != nil {
		stop()
		err = errors.Join(err, <-inbox)
	}
	return err
}
