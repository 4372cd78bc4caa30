package domain

import (
	"strings"
	"time"
)

// ExamDateLayout is the stored format of a scheduled medical exam.
const ExamDateLayout = "02/01/2006 15:04"

// CanScheduleExam reports whether an exam may be scheduled for c: every
// document resolved and no exam scheduled yet.
func CanScheduleExam(c Candidate) bool {
	return OverallStatus(c).IsComplete && c.MedicalExamDate == nil
}

// ScheduleExam sets the exam date once. Days before today (in now's
// location) are refused.
func (c Candidate) ScheduleExam(at, now time.Time) (Candidate, error) {
	if !CanScheduleExam(c) {
		return c, ErrExamSchedulingNotAllowed
	}
	at = at.In(now.Location())
	if startOfDay(at).Before(startOfDay(now)) {
		return c, ErrExamDateInPast
	}
	out := c.Clone()
	formatted := at.Format(ExamDateLayout)
	out.MedicalExamDate = &formatted
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AwaitingDocuments returns the candidates whose overall label is
// Aguardando Documentos. Candidates with rejections are not included.
func AwaitingDocuments(cands []Candidate) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if OverallStatus(c).Label == LabelAwaitingDocument {
			out = append(out, c)
		}
	}
	return out
}

// PendingDocuments lists the documents the candidate still has to send.
func PendingDocuments(c Candidate) []Document {
	var out []Document
	for _, d := range c.Documents {
		switch d.Status() {
		case StatusPending, StatusRejected:
			out = append(out, d)
		}
	}
	return out
}

func HasRejection(c Candidate) bool {
	for _, d := range c.Documents {
		if d.Status() == StatusRejected {
			return true
		}
	}
	return false
}

type DashboardStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	WaitingForDocs int `json:"waitingForDocs"`
	WithRejections int `json:"withRejections"`
}

func Dashboard(cands []Candidate) DashboardStats {
	stats := DashboardStats{Total: len(cands)}
	for _, c := range cands {
		overall := OverallStatus(c)
		if overall.IsComplete {
			stats.Completed++
		}
		if overall.Label == LabelAwaitingDocument {
			stats.WaitingForDocs++
		}
		if HasRejection(c) {
			stats.WithRejections++
		}
	}
	return stats
}

// Search filters candidates by job position or job id. A blank term
// matches everything.
func Search(cands []Candidate, term string) []Candidate {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return cands
	}
	var out []Candidate
	for _, c := range cands {
		if strings.Contains(strings.ToLower(c.JobPosition), term) ||
			strings.Contains(strings.ToLower(c.JobID), term) {
			out = append(out, c)
		}
	}
	return out
}
