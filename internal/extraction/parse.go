package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

type field struct {
	Name        string
	Description string
}

// Fields is the extraction vocabulary, in prompt order.
var Fields = []field{
	{"fullName", "O nome completo da pessoa, se houver."},
	{"cpf", "O número do CPF, se houver."},
	{"documentNumber", "O número do documento de identidade (RG), se houver."},
	{"birthDate", "A data de nascimento, se houver."},
	{"issueDate", "A data de emissão do documento, se houver."},
	{"address", "O endereço completo, se for um comprovante de residência."},
	{"zipCode", "O CEP, se for um comprovante de residência."},
}

// FieldsSchema is the JSON Schema model output must satisfy.
var FieldsSchema = buildFieldsSchema()

func buildFieldsSchema() string {
	props := make(map[string]any, len(Fields))
	for _, f := range Fields {
		props[f.Name] = map[string]any{
			"type":        []string{"string", "null"},
			"description": f.Description,
		}
	}
	b, err := json.MarshalIndent(map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

// ParseFields validates raw model output against FieldsSchema and keeps the
// non-blank values. Nothing left means a nil result.
func ParseFields(raw string) (domain.ExtractedData, error) {
	trimmed := cleanJSONBlock(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model output")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(FieldsSchema), gojsonschema.NewStringLoader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("unable to parse model output: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("model output does not match schema: %s", strings.Join(msgs, "; "))
	}

	var values map[string]*string
	if err := strictDecode([]byte(trimmed), &values); err != nil {
		return nil, err
	}
	out := make(domain.ExtractedData, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func strictDecode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
