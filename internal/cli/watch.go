package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("sweep", "", `Cron schedule for rescanning the inbox, e.g. "@every 5m" (default from config)`)
	watchCmd.Flags().StringP("output", "o", "", "Directory for converted statements (default from config, or DIR/output)")
	watchCmd.Flags().StringP("format", "f", "", "Output format: csv, xlsx or json")
}

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Convert every statement dropped into an inbox directory",
	Long: `Watch an inbox directory and convert each PDF that appears in it. Finished
files move to DIR/processed or DIR/failed. Files already present are converted
on start, and the inbox is rescanned on the sweep schedule.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.Inbox.Dir = args[0]
	}
	if v, _ := cmd.Flags().GetString("sweep"); v != "" {
		cfg.Inbox.Sweep = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output.Dir = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.Output.Format = v
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	sink, _, err := archive()
	if err != nil {
		return err
	}
	svc, err := inboxService(p, sink)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}

// inboxService builds the inbox service from the configuration. Converted
// statements go to output.dir, or DIR/output when unset.
func inboxService(p *pipeline.Pipeline, archived *ingest.ArchiveSink) (*ingest.Service, error) {
	if cfg.Inbox.Dir == "" {
		return nil, errors.New("no inbox directory: pass DIR or set inbox.dir")
	}
	outDir := cfg.Output.Dir
	if outDir == "" {
		outDir = filepath.Join(cfg.Inbox.Dir, "output")
	}
	sinks := []ingest.Sink{&ingest.OutputSink{
		Dir:           outDir,
		Format:        cfg.OutputFormat(),
		IncludeHeader: cfg.Output.Header,
	}}
	if archived != nil {
		sinks = append(sinks, archived)
	}
	return ingest.NewService(p, ingest.Config{
		Dir:      cfg.Inbox.Dir,
		Sweep:    cfg.Inbox.Sweep,
		Debounce: cfg.Inbox.Debounce,
		Workers:  cfg.Pipeline.Workers,
	}, logger, sinks...), nil
}
