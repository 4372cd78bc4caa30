package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/export"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the candidate report CSV",
	RunE:  runReport,
}

var notifyPendingCmd = &cobra.Command{
	Use:   "notify-pending",
	Short: "Email every candidate still awaiting documents",
	RunE:  runNotifyPending,
}

var exportExternalCmd = &cobra.Command{
	Use:   "export-external",
	Short: "Convert external search results to CSV or JSON",
	Long:  "Read a JSON array of external search results and write them with the export headers used by the admin screen.",
	RunE:  runExportExternal,
}

var (
	reportOutputFile   string
	externalInputFile  string
	externalOutputFile string
	externalFormat     string
)

func init() {
	reportCmd.Flags().StringVarP(&reportOutputFile, "out", "o", export.ReportFileName, "Output path, - for stdout")

	exportExternalCmd.Flags().StringVarP(&externalInputFile, "in", "i", "", "Path to the JSON search results")
	exportExternalCmd.Flags().StringVarP(&externalOutputFile, "out", "o", "-", "Output path, - for stdout")
	exportExternalCmd.Flags().StringVar(&externalFormat, "format", "csv", "Output format: csv or json")
	_ = exportExternalCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(reportCmd, notifyPendingCmd, exportExternalCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var buf bytes.Buffer
	if err := svc.ExportReport(ctx, &buf); err != nil {
		return err
	}
	return writeOutput(cmd, reportOutputFile, buf.Bytes())
}

func runNotifyPending(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.NotifyPending(ctx)
	if err != nil {
		return err
	}
	if report.Targeted == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nenhum candidato aguardando documentos.")
	}
	return export.WriteJSON(cmd.OutOrStdout(), report)
}

func runExportExternal(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(externalInputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var records []domain.ExternalCandidate
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("input must be a JSON array of records: %w", err)
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	write := export.WriteExternalCSV
	switch strings.ToLower(externalFormat) {
	case "csv":
	case "json":
		write = export.WriteExternalJSON
	default:
		return fmt.Errorf("unknown format %q (csv or json)", externalFormat)
	}

	var buf bytes.Buffer
	if err := write(&buf, records); err != nil {
		return err
	}
	return writeOutput(cmd, externalOutputFile, buf.Bytes())
}
