package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("não há dados para exportar")

const bom = "\uFEFF"

var ReportHeaders = []string{"Nome Completo", "ID da Vaga", "Cargo", "RG", "CPF", "Data Exame Admissional"}

var ExternalHeaders = []string{"ID da Vaga", "Nome Completo", "E-mail", "Status", "Data do Processo", "Vaga", "Unidade"}

// WriteCSV writes a spreadsheet-friendly table: UTF-8 BOM, ';' separator,
// every field quoted, rows joined by '\n' with no trailing newline.
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	bw.WriteString(strings.Join(headers, ";"))
	for _, row := range rows {
		bw.WriteByte('\n')
		for i, field := range row {
			if i > 0 {
				bw.WriteByte(';')
			}
			bw.WriteString(quote(field))
		}
	}
	return bw.Flush()
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func quote(field string) string {
	field = newlines.Replace(field)
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// WriteJSON writes v indented by two spaces.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func ReportRows(cands []domain.Candidate) [][]string {
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		jobID := c.JobID
		if jobID == "" {
			jobID = "N/A"
		}
		exam := "Não agendado"
		if c.MedicalExamDate != nil && *c.MedicalExamDate != "" {
			exam = *c.MedicalExamDate
		}
		rows = append(rows, []string{
			c.Name,
			jobID,
			c.JobPosition,
			extractedValue(c.Documents, "documentNumber"),
			extractedValue(c.Documents, "cpf"),
			exam,
		})
	}
	return rows
}

// extractedValue returns key from the first document that extracted it.
func extractedValue(docs []domain.Document, key string) string {
	for _, d := range docs {
		if v := d.ExtractedData()[key]; v != "" {
			return v
		}
	}
	return "N/A"
}

func WriteCandidateReport(w io.Writer, cands []domain.Candidate) error {
	return WriteCSV(w, ReportHeaders, ReportRows(cands))
}

func ExternalRows(records []domain.ExternalCandidate) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.JobID, r.Name, r.Email, r.Status, r.ProcessDate, r.JobPosition, r.Unit})
	}
	return rows
}

func WriteExternalCSV(w io.Writer, records []domain.ExternalCandidate) error {
	return WriteCSV(w, ExternalHeaders, ExternalRows(records))
}

func WriteExternalJSON(w io.Writer, records []domain.ExternalCandidate) error {
	if len(records) == 0 {
		return ErrNoData
	}
	return WriteJSON(w, records)
}

const (
	ReportFileName   = "relatorio_candidatos.csv"
	ExternalFileName = "exportacao_candidatos"
)
