package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FFM-HCFMUSP/FFM/internal/notify"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
	"github.com/FFM-HCFMUSP/FFM/internal/storage"
)

func useMemoryService(t *testing.T) *onboarding.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := onboarding.NewService(
		storage.NewMemoryStore(),
		storage.NewMemoryBlobStore(),
		nil,
		notify.LogNotifier{Logger: logger},
		onboarding.WithLogger(logger),
	)
	prev := openService
	openService = func(context.Context) (*onboarding.Service, func() error, error) {
		return svc, func() error { return nil }, nil
	}
	t.Cleanup(func() { openService = prev })
	return svc
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const records = `[
  {"name": "Ana Souza", "email": "ana@example.com", "jobPosition": "Enfermeira", "jobId": "V-1"},
  {"name": "Ana Souza", "email": "ANA@example.com ", "jobPosition": "Enfermeira", "jobId": "V-1"},
  {"name": "Bruno Lima", "email": "bruno@example.com", "jobPosition": "Técnico", "jobId": "V-2"}
]`

func TestImportCommand(t *testing.T) {
	useMemoryService(t)
	in := writeFile(t, "records.json", records)

	out, _, err := execute(t, "import", "--in", in)
	require.NoError(t, err)

	var report struct {
		Imported   []json.RawMessage `json:"imported"`
		Duplicates int               `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Imported, 2)
	assert.Equal(t, 1, report.Duplicates)

	// A second run imports nothing new.
	out, stderr, err := execute(t, "import", "--in", in)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Nenhum candidato novo")
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Imported)
	assert.Equal(t, 3, report.Duplicates)
}

func TestImportCommandRejectsMalformedInput(t *testing.T) {
	useMemoryService(t)
	in := writeFile(t, "records.json", `{"name": "not an array"}`)

	_, _, err := execute(t, "import", "--in", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON array")
}

func TestReportCommand(t *testing.T) {
	useMemoryService(t)

	_, _, err := execute(t, "report", "--out", "-")
	require.Error(t, err, "an empty store has nothing to export")

	_, _, err = execute(t, "import", "--in", writeFile(t, "records.json", records))
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "report.csv")
	_, stderr, err := execute(t, "report", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, stderr, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\uFEFFNome Completo;ID da Vaga"))
	assert.Contains(t, string(data), `"Bruno Lima";"V-2"`)
}

func TestNotifyPendingCommand(t *testing.T) {
	useMemoryService(t)

	_, stderr, err := execute(t, "notify-pending")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Nenhum candidato")

	_, _, err = execute(t, "import", "--in", writeFile(t, "records.json", records))
	require.NoError(t, err)

	out, _, err := execute(t, "notify-pending")
	require.NoError(t, err)
	var report onboarding.NotifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, onboarding.NotifyReport{Targeted: 2, Sent: 2}, report)
}

func TestExportExternalCommand(t *testing.T) {
	in := writeFile(t, "external.json", `[
  {"id": "V-9", "name": "Carla Dias", "email": "carla@example.com", "status": "Aprovado", "processDate": "2024-05-02", "jobPosition": "Médica", "unit": "InRad"}
]`)

	out, _, err := execute(t, "export-external", "--in", in, "--format", "csv", "--out", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\uFEFFID da Vaga;Nome Completo"))
	assert.Contains(t, out, `"Carla Dias"`)

	out, _, err = execute(t, "export-external", "--in", in, "--format", "json", "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"carla@example.com"`)

	_, _, err = execute(t, "export-external", "--in", in, "--format", "xml", "--out", "-")
	require.Error(t, err)
}

func TestExportExternalValidatesRecords(t *testing.T) {
	in := writeFile(t, "external.json", `[{"name": "Sem Email"}]`)

	_, _, err := execute(t, "export-external", "--in", in, "--format", "csv", "--out", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 0")
}
