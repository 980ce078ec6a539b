package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/model"
)

var (
	analyzeAddress string
	analyzeProject string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one address against a project's measurements",
	Long:  "Runs the full analysis for --address using the measurements in --project (YAML or JSON) and prints the compliance report as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadProject(analyzeProject)
		if err != nil {
			return err
		}

		env, err := initAnalysis("analyze", nil)
		if err != nil {
			return err
		}

		report, err := runWithTimeout(cmd.Context(), env.Runner, analyzeAddress, m)
		if err != nil {
			zap.L().Error("analysis failed",
				zap.String("address", analyzeAddress),
				zap.String("kind", model.Kind(err)),
				zap.Error(err),
			)
			return err
		}

		return writeReport(cmd.OutOrStdout(), report)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAddress, "address", "", "street address to analyze (required)")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "project measurements file, YAML or JSON (required)")
	_ = analyzeCmd.MarkFlagRequired("address")
	_ = analyzeCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(analyzeCmd)
}

// loadProject reads measurements from a YAML or JSON file. JSON parses as YAML.
func loadProject(path string) (model.ProjectMeasurements, error) {
	var m model.ProjectMeasurements
	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "read project file %s", path)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, eris.Wrapf(err, "parse project file %s", path)
	}
	return m, nil
}

// runWithTimeout bounds one analysis by analysis.timeout_secs.
func runWithTimeout(ctx context.Context, a analyzer, address string, m model.ProjectMeasurements) (*model.ComplianceReport, error) {
	if secs := cfg.Analysis.TimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Secs(secs))
		defer cancel()
	}
	return a.RunAnalysis(ctx, address, m)
}

func writeReport(w io.Writer, report *model.ComplianceReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(report), "encode report")
}
