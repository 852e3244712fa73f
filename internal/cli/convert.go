package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("output", "o", "", "Output file (single input) or directory (defaults to next to each input)")
	convertCmd.Flags().StringP("format", "f", "", "Output format: csv, xlsx or json")
	convertCmd.Flags().Bool("header", true, "Include statement summary rows")
}

var convertCmd = &cobra.Command{
	Use:   "convert FILE.pdf [FILE.pdf ...]",
	Short: "Convert statement PDFs",
	Long: `Convert one or more statement PDFs. Each input is written next to itself
with the output format's extension unless --output is given.`,
	Example: `  statement-ingest convert statement.pdf
  statement-ingest convert --bank hdfc --password s3cret -f xlsx jan.pdf feb.pdf
  statement-ingest convert -o out/ *.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	format := cfg.OutputFormat()
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		f, err := writer.ParseFormat(v)
		if err != nil {
			return err
		}
		format = f
	}
	includeHeader := cfg.Output.Header
	if cmd.Flags().Changed("header") {
		includeHeader, _ = cmd.Flags().GetBool("header")
	}
	output, _ := cmd.Flags().GetString("output")

	jobs := make([]pipeline.Job, 0, len(args))
	for _, path := range args {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return fmt.Errorf("expected .pdf file, got %q", path)
		}
		jobs = append(jobs, pipeline.Job{
			Source:      extractor.FromPath(path),
			Credentials: credentials(),
			Institution: bankName,
		})
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	sink, _, err := archive()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := p.Batch(ctx, jobs)

	out := cmd.OutOrStdout()
	failed := 0
	for i, res := range results {
		if sink != nil {
			jobs[i].ID = res.ID
			if err := sink.Publish(ctx, ingest.Delivery{Job: jobs[i], Result: res}); err != nil {
				logger.Warn("archive failed", "source", res.Source, "error", err)
			}
		}
		if res.Err != nil {
			failed++
			fmt.Fprintf(out, "%s: %s (%s)\n", args[i], res.Err, models.ErrorKind(res.Err))
			continue
		}

		dest := outputPath(args[i], output, format, len(args))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := writer.WriteToFile(dest, writer.New(format, includeHeader), res.Output()); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s, %d transaction(s), closing balance %s -> %s\n",
			args[i], res.Institution, len(res.Statement.Transactions),
			res.Statement.ClosingBalance.StringFixed(2), dest)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statement(s) failed", failed, len(args))
	}
	return nil
}

// outputPath places the converted input. A single input may name its output
// file directly; otherwise output is a directory.
func outputPath(input, output string, format writer.Format, inputs int) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + format.Extension()
	switch {
	case output == "":
		return filepath.Join(filepath.Dir(input), name)
	case inputs == 1 && filepath.Ext(output) != "":
		return output
	default:
		return filepath.Join(output, name)
	}
}
