package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/tat"
)

// TATDocument is the search projection of a journey's turn-around time
type TATDocument struct {
	JourneyID       string             `json:"journey_id"`
	TruckNumber     string             `json:"truck_number"`
	VehicleNumber   string             `json:"vehicle_number"`
	Transporter     string             `json:"transporter"`
	SupplierName    string             `json:"supplier_name"`
	DepotName       string             `json:"depot_name"`
	MaterialType    model.MaterialType `json:"material_type"`
	Status          model.Status       `json:"status"`
	NextMilestone   model.Milestone    `json:"next_milestone,omitempty"`
	IsTransshipment bool               `json:"is_transshipment"`
	ArrivalDateTime time.Time          `json:"arrival_date_time"`
	ExitedAt        *time.Time         `json:"exited_at,omitempty"`
	ActualMinutes   float64            `json:"actual_minutes"`
	IdealMinutes    int                `json:"ideal_minutes"`
	PercentOver     float64            `json:"percent_over"`
	Severity        tat.Severity       `json:"severity"`
	Version         int                `json:"version"`
	IndexedAt       time.Time          `json:"indexed_at"`
}

// NewTATDocument builds the projection for a journey and its evaluated report
func NewTATDocument(j *model.TruckJourney, report tat.Report, now time.Time) TATDocument {
	return TATDocument{
		JourneyID:       j.UUID,
		TruckNumber:     j.TruckNumber,
		VehicleNumber:   j.VehicleNumber,
		Transporter:     j.Transporter,
		SupplierName:    j.SupplierName,
		DepotName:       j.DepotName,
		MaterialType:    j.MaterialType,
		Status:          j.Status,
		NextMilestone:   j.NextMilestone,
		IsTransshipment: j.IsTransshipment,
		ArrivalDateTime: j.ArrivalDateTime,
		ExitedAt:        j.ExitedAt,
		ActualMinutes:   report.ActualMinutes,
		IdealMinutes:    report.IdealMinutes,
		PercentOver:     report.PercentOver,
		Severity:        report.Severity,
		Version:         j.Version,
		IndexedAt:       now,
	}
}

// TATProjector keeps the TAT index in step with the journey store
type TATProjector struct {
	client Client
}

// NewTATProjector creates a projector on top of a client
func NewTATProjector(client Client) *TATProjector {
	return &TATProjector{client: client}
}

// Index writes the document under the journey id. A document older than the
// indexed one is dropped.
func (p *TATProjector) Index(ctx context.Context, doc TATDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal TAT document: %w", err)
	}
	err = p.client.IndexDocument(ctx, doc.JourneyID, doc.Version, body)
	if errors.Is(err, ErrStaleDocument) {
		return nil
	}
	return err
}

// SearchBySeverity returns journeys classified at or above the given severity,
// slowest first
func (p *TATProjector) SearchBySeverity(ctx context.Context, minimum tat.Severity, limit int) ([]TATDocument, error) {
	raw, err := p.client.SearchDocuments(ctx, severityQuery(minimum, limit))
	if err != nil {
		return nil, err
	}

	docs := make([]TATDocument, 0, len(raw))
	for _, r := range raw {
		var doc TATDocument
		if err := json.Unmarshal(r, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode TAT document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func severityQuery(minimum tat.Severity, limit int) map[string]interface{} {
	var levels []string
	for _, s := range []tat.Severity{tat.SeverityNormal, tat.SeverityWarning, tat.SeverityCritical} {
		if s.AtLeast(minimum) {
			levels = append(levels, string(s))
		}
	}
	if limit <= 0 {
		limit = 50
	}

	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"terms": map[string]interface{}{
				"severity": levels,
			},
		},
		"sort": []map[string]interface{}{
			{"percent_over": map[string]string{"order": "desc"}},
		},
	}
}
