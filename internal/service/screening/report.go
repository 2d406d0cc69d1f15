package screening

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persona selects which projection of the compiled result a report carries.
type Persona string

const (
	PersonaHiringManager     Persona = "hiring_manager"
	PersonaComplianceOfficer Persona = "compliance_officer"
)

// ReportMeta is what the orchestrator returns about a generated report.
type ReportMeta struct {
	ID          uuid.UUID `json:"id"`
	Persona     Persona   `json:"persona"`
	Format      string    `json:"format"`
	SizeBytes   int       `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report is a rendered artifact plus its metadata.
type Report struct {
	Meta    ReportMeta `json:"meta"`
	Content []byte     `json:"content"`
}

// ReportGenerator renders persona-specific reports from a compiled result.
type ReportGenerator interface {
	Generate(ctx context.Context, screeningID uuid.UUID, cr *CompiledResult) ([]Report, error)
}

// JSONReportGenerator renders two JSON reports: the hiring manager sees the
// external result shape, the compliance officer the full compiled record.
type JSONReportGenerator struct {
	logger *zap.Logger
}

func NewJSONReportGenerator(logger *zap.Logger) *JSONReportGenerator {
	return &JSONReportGenerator{logger: logger}
}

func (g *JSONReportGenerator) Generate(ctx context.Context, screeningID uuid.UUID, cr *CompiledResult) ([]Report, error) {
	reports := make([]Report, 0, 2)

	summary, err := json.Marshal(cr.ToScreeningResult())
	if err != nil {
		return nil, err
	}
	reports = append(reports, newReport(PersonaHiringManager, summary))

	full, err := json.Marshal(cr)
	if err != nil {
		return nil, err
	}
	reports = append(reports, newReport(PersonaComplianceOfficer, full))

	g.logger.Debug("reports generated",
		zap.String("screening_id", screeningID.String()),
		zap.Int("count", len(reports)))
	return reports, nil
}

func newReport(persona Persona, content []byte) Report {
	return Report{
		Meta: ReportMeta{
			ID:          uuid.Must(uuid.NewV7()),
			Persona:     persona,
			Format:      "json",
			SizeBytes:   len(content),
			GeneratedAt: time.Now().UTC(),
		},
		Content: content,
	}
}
