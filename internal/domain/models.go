package domain

import "time"

// Candidate is a person going through onboarding. The document list is
// fixed at creation; only document state and the exam date change.
type Candidate struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	JobPosition     string     `json:"jobPosition"`
	JobID           string     `json:"jobId,omitempty"`
	MedicalExamDate *string    `json:"medicalExamDate"`
	Documents       []Document `json:"documents"`
}

// Clone copies the document slice so a caller can transition documents
// without touching the original.
func (c Candidate) Clone() Candidate {
	docs := make([]Document, len(c.Documents))
	copy(docs, c.Documents)
	c.Documents = docs
	if c.MedicalExamDate != nil {
		d := *c.MedicalExamDate
		c.MedicalExamDate = &d
	}
	return c
}

// DocumentIndex returns the position of documentID in the checklist.
func (c Candidate) DocumentIndex(documentID string) (int, error) {
	for i, d := range c.Documents {
		if d.ID == documentID {
			return i, nil
		}
	}
	return -1, ErrDocumentNotFound
}

// ImportRecord is a candidate coming from the external job-board search.
type ImportRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	JobPosition string `json:"jobPosition" validate:"required"`
	JobID       string `json:"jobId"`
}

// ExternalCandidate is one row of the external candidate search.
type ExternalCandidate struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Status      string `json:"status" validate:"omitempty,oneof=Aprovado Reprovado 'Em processo'"`
	ProcessDate string `json:"processDate" validate:"omitempty,datetime=2006-01-02"`
	JobPosition string `json:"jobPosition"`
	JobID       string `json:"jobId"`
	Unit        string `json:"unit"`
}

func (r ExternalCandidate) ImportRecord() ImportRecord {
	return ImportRecord{ID: r.ID, Name: r.Name, Email: r.Email, JobPosition: r.JobPosition, JobID: r.JobID}
}

// NewCandidate materialises an imported record with a fresh checklist and
// no exam date.
func NewCandidate(id string, rec ImportRecord, at time.Time) Candidate {
	return Candidate{
		ID:          id,
		Name:        rec.Name,
		Email:       rec.Email,
		JobPosition: rec.JobPosition,
		JobID:       rec.JobID,
		Documents:   DefaultChecklist(at),
	}
}

type checklistItem struct {
	id       string
	name     string
	optional bool
}

var defaultChecklist = []checklistItem{
	{id: "doc_id_frente", name: "Cédula de identidade - Frente"},
	{id: "doc_id_verso", name: "Cédula de identidade - Verso"},
	{id: "doc_cpf_frente", name: "CPF - Frente"},
	{id: "doc_cpf_verso", name: "CPF - Verso"},
	{id: "doc_titulo_frente", name: "Título de Eleitor - Frente"},
	{id: "doc_titulo_verso", name: "Título de Eleitor - Verso"},
	{id: "doc_formacao_frente", name: "Formação (conforme requisito do Cargo) - Frente"},
	{id: "doc_formacao_verso", name: "Formação (conforme requisito do Cargo) - Verso"},
	{id: "doc_residencia", name: "Comprovante de Residência"},
	{id: "doc_vacinacao", name: "Carteira de Vacinação (exceto colaboradores ICESP)"},
	{id: "doc_ctps_foto", name: "CTPS - Página da Foto"},
	{id: "doc_ctps_civil", name: "CTPS - Página da Qualificação Civil"},
	{id: "doc_ctps_vinculo", name: "CTPS – último vínculo ou atual ativo que for conciliar"},
	{id: "doc_pis", name: "Cartão do PIS / PASEP ou Extrato de PIS ATIVO"},
	{id: "doc_certidao", name: "Certidão de Nascimento (SOLTEIROS) ou Casamento (CASADOS)"},
	{id: "doc_militar", name: "Certificado Militar", optional: true},
	{id: "doc_conselho", name: "Carteira do Conselho Regional (atual)", optional: true},
	{id: "doc_outro_vinculo", name: "Declaração de outro vínculo Trabalhista", optional: true},
}

// DefaultChecklist returns the admission checklist, every item PENDING.
func DefaultChecklist(at time.Time) []Document {
	docs := make([]Document, 0, len(defaultChecklist))
	for _, item := range defaultChecklist {
		docs = append(docs, NewPendingDocument(item.id, item.name, item.optional, at))
	}
	return docs
}

// AuditEntry records one change applied to a candidate.
type AuditEntry struct {
	CandidateID string            `json:"candidateId"`
	DocumentID  string            `json:"documentId,omitempty"`
	Action      string            `json:"action"`
	From        DocumentStatus    `json:"from,omitempty"`
	To          DocumentStatus    `json:"to,omitempty"`
	Detail      map[string]string `json:"detail,omitempty"`
	At          time.Time         `json:"at"`
}

const (
	ActionImported      = "imported"
	ActionExamScheduled = "exam_scheduled"
)
