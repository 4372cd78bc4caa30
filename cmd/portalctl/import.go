package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/export"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import approved candidates from a JSON file",
	Long:  "Import a JSON array of candidate records (name, email, jobPosition, jobId). Records whose email already exists are skipped.",
	RunE:  runImport,
}

var importInputFile string

func init() {
	importCmd.Flags().StringVarP(&importInputFile, "in", "i", "", "Path to the JSON records file")
	_ = importCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(importInputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var records []domain.ImportRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("input must be a JSON array of records: %w", err)
	}

	ctx := context.Background()
	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.ImportCandidates(ctx, records)
	if err != nil {
		return err
	}
	if len(report.Imported) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nenhum candidato novo para importar.")
	}
	return export.WriteJSON(cmd.OutOrStdout(), report)
}
