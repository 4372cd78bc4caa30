package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// documentWire is the flat JSON form shared by the API and the Postgres store.
type documentWire struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Status          DocumentStatus `json:"status"`
	Optional        bool           `json:"optional,omitempty"`
	FileName        string         `json:"fileName,omitempty"`
	FileURL         string         `json:"fileUrl,omitempty"`
	ExtractedData   ExtractedData  `json:"extractedData,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	LastUpdated     time.Time      `json:"lastUpdated"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	w := documentWire{
		ID:              d.ID,
		Name:            d.Name,
		Status:          d.Status(),
		Optional:        d.Optional,
		ExtractedData:   d.ExtractedData(),
		RejectionReason: d.RejectionReason(),
		LastUpdated:     d.LastUpdated,
	}
	if f := d.File(); f != nil {
		w.FileName = f.FileName
		w.FileURL = f.URL
	}
	return json.Marshal(w)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var w documentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	status, err := ParseDocumentStatus(string(w.Status))
	if err != nil {
		return err
	}

	var file *Attachment
	if w.FileName != "" || w.FileURL != "" {
		file = &Attachment{FileName: w.FileName, URL: w.FileURL}
	}
	if len(w.ExtractedData) > 0 && status != StatusApproved {
		return fmt.Errorf("document %s: extractedData present on %s document", w.ID, status)
	}
	if w.RejectionReason != "" && status != StatusRejected {
		return fmt.Errorf("document %s: rejectionReason present on %s document", w.ID, status)
	}

	var state DocumentState
	switch status {
	case StatusPending:
		if file != nil {
			return fmt.Errorf("document %s: file present on pending document", w.ID)
		}
		state = Pending{}
	case StatusAnalysing:
		if file == nil {
			return fmt.Errorf("document %s: analysing document without file", w.ID)
		}
		state = Analysing{File: *file}
	case StatusApproved:
		data := w.ExtractedData
		if len(data) == 0 {
			data = nil
		}
		state = Approved{File: file, ExtractedData: data}
	case StatusRejected:
		if w.RejectionReason == "" {
			return fmt.Errorf("document %s: rejected document without reason", w.ID)
		}
		state = Rejected{File: file, Reason: w.RejectionReason}
	case StatusNotApplicable:
		if !w.Optional {
			return fmt.Errorf("document %s: mandatory document marked not applicable", w.ID)
		}
		if file != nil {
			return fmt.Errorf("document %s: file present on not applicable document", w.ID)
		}
		state = NotApplicable{}
	}

	*d = Document{
		ID:          w.ID,
		Name:        w.Name,
		Optional:    w.Optional,
		State:       state,
		LastUpdated: w.LastUpdated,
	}
	return nil
}
