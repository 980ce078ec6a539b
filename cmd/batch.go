package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoning-cli/internal/batchio"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

var (
	batchInput       string
	batchOutput      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every row of a CSV or XLSX request sheet",
	Long:  "Reads requests (one address plus measurements per row) from --input and writes one result row per request to --output (.xlsx or .csv; stdout CSV when omitted).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrent = batchConcurrency
		}

		env, err := initAnalysis("batch", nil)
		if err != nil {
			return err
		}

		reqs, err := batchio.ReadFile(ctx, batchInput)
		if err != nil {
			return err
		}

		policy := resilience.NewPolicy(cfg.Batch.RetryAttempts+1, cfg.Batch.RetryBackoffMs, 0)
		results := processBatch(ctx, reqs, cfg.Batch.MaxConcurrent, policy, env.Runner)

		return writeResults(cmd.OutOrStdout(), batchOutput, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "request sheet, .csv or .xlsx (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "result sheet, .xlsx or .csv (default CSV on stdout)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel analyses (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// processBatch analyzes reqs with at most concurrency analyses in flight.
// Transient failures retry the whole analysis under policy. Results keep
// input order; a failed row never aborts the batch.
func processBatch(ctx context.Context, reqs []batchio.Request, concurrency int, policy resilience.Policy, a analyzer) []batchio.Result {
	results := make([]batchio.Result, len(reqs))
	if len(reqs) == 0 {
		zap.L().Info("no requests found")
		return results
	}

	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, req := range reqs {
		results[i].Request = req
		if req.Err != nil {
			failed.Add(1)
			results[i].Err = req.Err
			zap.L().Warn("skipping invalid row", zap.Int("row", req.Row), zap.Error(req.Err))
			continue
		}

		g.Go(func() error {
			log := zap.L().With(zap.Int("row", req.Row), zap.String("address", req.Address))

			p := policy
			p.OnRetry = resilience.LogRetries(log, req.Address)

			attempts := 0
			report, err := resilience.Do(gctx, p, func(ctx context.Context) (*model.ComplianceReport, error) {
				attempts++
				return runWithTimeout(ctx, a, req.Address, req.Measurements)
			})

			results[i].Attempts = attempts
			if err != nil {
				failed.Add(1)
				results[i].Err = err
				log.Error("analysis failed", zap.String("kind", model.Kind(err)), zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			results[i].Report = report
			log.Info("analysis complete",
				zap.String("zone", report.Zone.ZoneCode),
				zap.Bool("approved", report.Approved),
			)
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

// writeResults writes results to path by extension, or CSV to stdout when path is empty.
func writeResults(stdout io.Writer, path string, results []batchio.Result) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path != "" {
			return eris.Errorf("output %s: unsupported extension", path)
		}
		return batchio.WriteCSV(stdout, results)
	case ".xlsx":
		return batchio.WriteXLSX(path, results)
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		if err := batchio.WriteCSV(f, results); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrapf(f.Close(), "close %s", path)
	default:
		return eris.Errorf("output %s: unsupported extension", path)
	}
}
