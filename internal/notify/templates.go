package notify

import (
	"fmt"
	"strings"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

const PendingDocumentsSubject = "Documentação para Admissão - Fundação Faculdade de Medicina"

const signature = "\nAtenciosamente,\nEquipe de Admissão FFM"

// PendingDocuments builds the bulk reminder listing what the candidate still
// has to send. ok is false when nothing is pending.
func PendingDocuments(c domain.Candidate) (Message, bool) {
	docs := domain.PendingDocuments(c)
	if len(docs) == 0 {
		return Message{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s!\n\n", c.Name)
	fmt.Fprintf(&b, "Parabéns pela sua aprovação para a vaga de %s.\n", c.JobPosition)
	b.WriteString("Por favor, envie os seguintes documentos pendentes através do nosso portal:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s\n", d.Name)
	}
	b.WriteString(signature)
	return Message{To: c.Email, Subject: PendingDocumentsSubject, Body: b.String()}, true
}

func DocumentApproved(c domain.Candidate, d domain.Document) Message {
	name := d.Name
	if f := d.File(); f != nil && f.FileName != "" {
		name = f.FileName
	}
	return Message{
		To:      c.Email,
		Subject: fmt.Sprintf("Documento '%s' Aprovado!", name),
		Body:    fmt.Sprintf("Olá, %s!\n\nSeu documento '%s' foi aprovado.\n%s", c.Name, d.Name, signature),
	}
}

func DocumentRejected(c domain.Candidate, d domain.Document) Message {
	return Message{
		To:      c.Email,
		Subject: "Documento pendente",
		Body: fmt.Sprintf("Olá, %s!\n\nDocumento pendente: %s. Motivo: %s\nPor favor, envie novamente através do nosso portal.\n%s",
			c.Name, d.Name, d.RejectionReason(), signature),
	}
}

func ExamScheduled(c domain.Candidate) Message {
	date := ""
	if c.MedicalExamDate != nil {
		date = *c.MedicalExamDate
	}
	return Message{
		To:      c.Email,
		Subject: "Exame Admissional Agendado",
		Body:    fmt.Sprintf("Olá, %s!\n\nSeu exame admissional foi agendado para %s.\n%s", c.Name, date, signature),
	}
}
