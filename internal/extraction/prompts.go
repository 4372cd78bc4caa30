package extraction

import "strings"

const BASE_SYSTEM = `Você é um mecanismo de extração de dados de documentos brasileiros.
Responda SOMENTE com JSON válido e nada mais.
Sem markdown. Sem comentários. Sem chaves extras.`

const BASE_USER_TEMPLATE = `Analise a imagem deste documento e extraia as seguintes informações, se presentes: nome completo, CPF, número do documento de identidade (RG), data de nascimento, data de emissão, endereço e CEP.
Responda no formato JSON definido. Se um campo não for encontrado, omita-o do JSON.

Schema (JSON Schema):
{{JSON_SCHEMA}}`

const REPAIR_SYSTEM = `Você é um mecanismo estrito de correção de JSON.
Você recebe uma saída que falhou na validação do schema.
Retorne SOMENTE o JSON corrigido, exatamente conforme o schema.
Sem markdown. Sem comentários. Sem chaves extras.`

const REPAIR_USER_TEMPLATE = `A saída anterior do modelo era inválida ou não correspondia ao schema.

Schema (JSON Schema):
{{JSON_SCHEMA}}

Saída inválida:
{{MODEL_OUTPUT}}

Corrija a saída para que corresponda exatamente ao schema.
Retorne apenas JSON.`

func RenderTemplate(tpl string, vars map[string]string) string {
	rendered := tpl
	for k, v := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
	}
	return rendered
}

func BuildBaseUserPrompt(jsonSchema string) string {
	return RenderTemplate(BASE_USER_TEMPLATE, map[string]string{
		"JSON_SCHEMA": jsonSchema,
	})
}

func BuildRepairUserPrompt(jsonSchema string, modelOutput string) string {
	return RenderTemplate(REPAIR_USER_TEMPLATE, map[string]string{
		"JSON_SCHEMA":  jsonSchema,
		"MODEL_OUTPUT": modelOutput,
	})
}
