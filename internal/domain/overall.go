package domain

type OverallLabel string

const (
	LabelComplete         OverallLabel = "Completo"
	LabelWithIssues       OverallLabel = "Pendências"
	LabelInAnalysis       OverallLabel = "Em Análise"
	LabelAwaitingDocument OverallLabel = "Aguardando Documentos"
)

type Overall struct {
	Label      OverallLabel `json:"label"`
	IsComplete bool         `json:"isComplete"`
}

// OverallStatus derives a candidate's aggregate status from its current
// documents. Precedence is fixed: complete, then any rejection, then any
// analysis in progress, then awaiting documents.
func OverallStatus(c Candidate) Overall {
	resolved := 0
	rejected := false
	analysing := false
	for _, d := range c.Documents {
		switch d.Status() {
		case StatusApproved, StatusNotApplicable:
			resolved++
		case StatusRejected:
			rejected = true
		case StatusAnalysing:
			analysing = true
		}
	}

	switch {
	case resolved == len(c.Documents):
		return Overall{Label: LabelComplete, IsComplete: true}
	case rejected:
		return Overall{Label: LabelWithIssues}
	case analysing:
		return Overall{Label: LabelInAnalysis}
	default:
		return Overall{Label: LabelAwaitingDocument}
	}
}
