package screening

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/tenant"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cost"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
	"github.com/veriscreen/screening-backend/internal/service/compliance"
	"github.com/veriscreen/screening-backend/internal/service/entityres"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
	"github.com/veriscreen/screening-backend/internal/service/risk"
)

// Request is the full screening order for one subject.
type Request struct {
	Subject       investigation.SubjectIdentifiers `json:"subject" validate:"required"`
	Locale        values.Locale                    `json:"locale" validate:"required"`
	Tier          values.ServiceTier               `json:"tier" validate:"required"`
	Degree        values.SearchDegree              `json:"degree" validate:"min=1,max=3"`
	Role          values.RoleCategory              `json:"role" validate:"required"`
	ConsentToken  string                           `json:"consent_token,omitempty"`
	ExcludedTypes []investigation.InformationType  `json:"excluded_types,omitempty"`
	DataOrigin    values.DataOrigin                `json:"data_origin,omitempty"`
}

// Status is the screening lifecycle state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// PhaseName identifies one of the six orchestrator phases.
type PhaseName string

const (
	PhaseValidation       PhaseName = "validation"
	PhaseCompliance       PhaseName = "compliance"
	PhaseConsent          PhaseName = "consent"
	PhaseInvestigation    PhaseName = "investigation"
	PhaseRiskAnalysis     PhaseName = "risk_analysis"
	PhaseReportGeneration PhaseName = "report_generation"
)

var phaseOrder = []PhaseName{
	PhaseValidation, PhaseCompliance, PhaseConsent,
	PhaseInvestigation, PhaseRiskAnalysis, PhaseReportGeneration,
}

// PhaseStatus is one phase's terminal state.
type PhaseStatus string

const (
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
	PhaseNotReached PhaseStatus = "not_reached"
)

// PhaseRecord is the per-phase accounting row.
type PhaseRecord struct {
	Phase    PhaseName     `json:"phase"`
	Status   PhaseStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Cost     values.Cost   `json:"cost"`
	Error    string        `json:"error,omitempty"`
}

// Screening is the orchestrator's full record of one run.
type Screening struct {
	ID       uuid.UUID        `json:"id"`
	TenantID uuid.UUID        `json:"tenant_id"`
	EntityID uuid.UUID        `json:"entity_id"`
	Status   Status           `json:"status"`
	Phases   []PhaseRecord    `json:"phases"`
	Result   *ScreeningResult `json:"result,omitempty"`
	Reports  []ReportMeta     `json:"reports,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Orchestrator drives a screening request through validation, compliance,
// consent, investigation, risk analysis and report generation. Phase order is
// strict; a failed phase halts everything after it.
type Orchestrator struct {
	validate     *validator.Validate
	tenants      tenant.Repository
	compliance   *compliance.Engine
	entities     *entityres.Service
	investigator *invsvc.Orchestrator
	scorer       *risk.Scorer
	patterns     *risk.PatternRecognizer
	anomaly      *risk.AnomalyDetector
	compiler     *Compiler
	reports      ReportGenerator
	costs        *cost.Service
	profiles     entity.ProfileRepository
	auditLog     *audit.Logger
	cfg          *config.Config
	logger       *zap.Logger
}

// Deps bundles the orchestrator's collaborators so construction sites stay
// readable and tests can substitute fakes per field.
type Deps struct {
	Tenants      tenant.Repository
	Compliance   *compliance.Engine
	Entities     *entityres.Service
	Investigator *invsvc.Orchestrator
	Scorer       *risk.Scorer
	Patterns     *risk.PatternRecognizer
	Anomaly      *risk.AnomalyDetector
	Compiler     *Compiler
	Reports      ReportGenerator
	Costs        *cost.Service
	Profiles     entity.ProfileRepository
	AuditLog     *audit.Logger
	Config       *config.Config
	Logger       *zap.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		validate:     validator.New(),
		tenants:      d.Tenants,
		compliance:   d.Compliance,
		entities:     d.Entities,
		investigator: d.Investigator,
		scorer:       d.Scorer,
		patterns:     d.Patterns,
		anomaly:      d.Anomaly,
		compiler:     d.Compiler,
		reports:      d.Reports,
		costs:        d.Costs,
		profiles:     d.Profiles,
		auditLog:     d.AuditLog,
		cfg:          d.Config,
		logger:       d.Logger,
	}
}

// Run executes one screening under the bound request context. A context
// marked with WithResume replays investigation control flow from the latest
// checkpoint instead of starting over.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Screening, error) {
	rc, err := requestcontext.From(ctx)
	if err != nil {
		return nil, err
	}

	scr := &Screening{
		ID:       uuid.Must(uuid.NewV7()),
		TenantID: rc.TenantID,
		Status:   StatusInProgress,
	}

	o.audit(ctx, audit.EventScreeningStarted, scr, nil)

	var cr *CompiledResult
	for _, phase := range phaseOrder {
		started := time.Now()
		var phaseErr error

		switch phase {
		case PhaseValidation:
			phaseErr = o.runValidation(ctx, req, scr)
		case PhaseCompliance:
			phaseErr = o.runCompliance(ctx, req, rc, scr)
		case PhaseConsent:
			phaseErr = o.runConsent(req, rc)
		case PhaseInvestigation:
			cr, phaseErr = o.runInvestigation(ctx, req, scr)
		case PhaseRiskAnalysis:
			// Risk arithmetic runs inside runInvestigation's compile step;
			// this phase records its boundary for cost and audit symmetry.
		case PhaseReportGeneration:
			phaseErr = o.runReports(ctx, scr, cr)
		}

		rec := PhaseRecord{
			Phase:    phase,
			Status:   PhaseCompleted,
			Duration: time.Since(started),
		}
		if phase == PhaseInvestigation {
			rec.Cost = o.costs.ScreeningTotal(rc.TenantID, scr.ID)
		}
		if phaseErr != nil {
			rec.Status = PhaseFailed
			rec.Error = phaseErr.Error()
			scr.Phases = append(scr.Phases, rec)
			o.fail(ctx, scr, phase, phaseErr)
			return scr, phaseErr
		}
		scr.Phases = append(scr.Phases, rec)
		o.audit(ctx, audit.EventPhaseCompleted, scr, map[string]interface{}{
			"phase":       string(phase),
			"duration_ms": rec.Duration.Milliseconds(),
		})
	}

	scr.Status = StatusComplete
	if len(scr.Warnings) > 0 {
		scr.Status = StatusPartial
	}
	o.audit(ctx, audit.EventScreeningCompleted, scr, map[string]interface{}{
		"status": string(scr.Status),
	})
	return scr, nil
}

func (o *Orchestrator) runValidation(ctx context.Context, req *Request, scr *Screening) error {
	if err := o.validate.Struct(req); err != nil {
		return errors.NewValidationError("invalid_request", err.Error())
	}
	if err := req.Subject.Validate(); err != nil {
		return err
	}
	if _, err := values.ParseSearchDegree(int(req.Degree)); err != nil {
		return errors.NewValidationError("invalid_degree", err.Error())
	}

	warnings, err := o.compliance.ValidateServiceConfig(compliance.ServiceConfig{
		Tier:          req.Tier,
		Degree:        req.Degree,
		ExcludedTypes: req.ExcludedTypes,
	})
	if err != nil {
		return err
	}
	scr.Warnings = append(scr.Warnings, warnings...)

	t, err := o.tenants.GetByID(ctx, scr.TenantID)
	if err != nil {
		return err
	}
	return t.EnsureActive()
}

// runCompliance stamps the permitted check set into the request context. If
// nothing at all is permitted the screening cannot proceed.
func (o *Orchestrator) runCompliance(ctx context.Context, req *Request, rc *requestcontext.RequestContext, scr *Screening) error {
	permitted := o.compliance.PermittedChecks(req.Locale, req.Role, req.Tier)
	if len(permitted) == 0 {
		return errors.NewComplianceBlockedError(
			"no check type is permitted for this locale and role")
	}
	rc.PermittedChecks = permitted

	if req.DataOrigin == values.OriginCustomerProvided {
		rc.CacheScope = requestcontext.ScopeTenantIsolated
	}

	o.audit(ctx, audit.EventComplianceDecision, scr, map[string]interface{}{
		"permitted_checks": len(permitted),
		"locale":           req.Locale.String(),
		"role":             string(req.Role),
	})
	return nil
}

// runConsent verifies the caller asserted a consent token whenever any
// permitted check requires consent. The token itself is recorded, not
// cryptographically re-validated here.
func (o *Orchestrator) runConsent(req *Request, rc *requestcontext.RequestContext) error {
	needed := false
	for ct := range rc.PermittedChecks {
		if o.compliance.Evaluate(req.Locale, ct, req.Role, req.Tier).RequiresConsent {
			needed = true
			break
		}
	}
	if needed && req.ConsentToken == "" {
		return errors.NewConsentMissingError(
			"screening includes checks that require recorded subject consent")
	}
	return nil
}

func (o *Orchestrator) runInvestigation(ctx context.Context, req *Request, scr *Screening) (*CompiledResult, error) {
	resolved, err := o.entities.Resolve(ctx, &req.Subject, scr.TenantID, req.Tier)
	if err != nil {
		return nil, err
	}
	scr.EntityID = resolved.Entity.ID

	inv, err := o.investigator.Run(ctx, invsvc.ExecutionContext{
		Subject:     &req.Subject,
		Locale:      req.Locale,
		Tier:        req.Tier,
		EntityID:    resolved.Entity.ID,
		TenantID:    scr.TenantID,
		ScreeningID: scr.ID,
	}, req.Role, o.resumable(ctx))
	if err != nil {
		return nil, err
	}
	scr.Warnings = append(scr.Warnings, inv.Warnings...)

	score := o.scorer.Score(inv.Findings)
	patterns := o.patterns.Recognize(inv.Findings)
	deception := o.anomaly.Assess(inv.Inconsistencies, inv.Findings)
	conn := o.analyzeConnections(ctx, resolved.Entity.ID, inv)

	cr := o.compiler.Compile(inv, score, deception, patterns, conn)
	o.saveProfile(ctx, resolved.Entity.ID, cr)
	return cr, nil
}

// resume requests arrive flagged on the context by the transport layer.
type resumeKey struct{}

// WithResume marks the context so Run replays from the latest checkpoint.
func WithResume(ctx context.Context) context.Context {
	return context.WithValue(ctx, resumeKey{}, true)
}

func (o *Orchestrator) resumable(ctx context.Context) bool {
	v, _ := ctx.Value(resumeKey{}).(bool)
	return v
}

// analyzeConnections builds the entity graph from network phase output plus
// persisted relations and propagates risk back to the subject.
func (o *Orchestrator) analyzeConnections(ctx context.Context, entityID uuid.UUID, inv *invsvc.Result) risk.ConnectionAnalysis {
	analyzer := risk.NewConnectionAnalyzer()
	analyzer.AddNode(risk.GraphNode{ID: entityID, Name: "subject"})

	for _, de := range inv.DiscoveredEntities {
		nodeID := uuid.Must(uuid.NewV7())
		analyzer.AddNode(risk.GraphNode{
			ID:           nodeID,
			Name:         de.Name,
			MaxSeverity:  discoveredSeverity(de),
			HasLocalRisk: de.Attributes["risk"] != "",
			PEP:          de.Attributes["pep"] == "true",
			Sanctioned:   de.Attributes["sanctioned"] == "true",
			ShellMarker:  de.Attributes["shell"] == "true",
		})
		analyzer.AddRelation(entity.Relation{
			FromID:   entityID,
			ToID:     nodeID,
			Type:     relationTypeOf(de.Relation),
			Strength: strengthOf(de),
		})
	}

	rels, err := o.entities.Relations(ctx, entityID)
	if err == nil {
		for _, r := range rels {
			analyzer.AddRelation(*r)
		}
	}
	return analyzer.Analyze(entityID)
}

func discoveredSeverity(de investigation.DiscoveredEntity) values.Severity {
	switch {
	case de.Attributes["sanctioned"] == "true":
		return values.SeverityCritical
	case de.Attributes["pep"] == "true", de.Attributes["shell"] == "true":
		return values.SeverityHigh
	case de.Attributes["risk"] != "":
		return values.SeverityMedium
	default:
		return values.SeverityLow
	}
}

func relationTypeOf(s string) entity.RelationType {
	switch entity.RelationType(s) {
	case entity.RelationOwnership, entity.RelationFinancial, entity.RelationBusiness,
		entity.RelationPolitical, entity.RelationFamily, entity.RelationLegal,
		entity.RelationEmployment, entity.RelationSocial, entity.RelationEducational:
		return entity.RelationType(s)
	default:
		return entity.RelationBusiness
	}
}

func strengthOf(de investigation.DiscoveredEntity) entity.ConnectionStrength {
	if de.Confidence.Float() >= 0.7 {
		return entity.StrengthDirect
	}
	return entity.StrengthWeak
}

func (o *Orchestrator) runReports(ctx context.Context, scr *Screening, cr *CompiledResult) error {
	if cr == nil {
		return errors.NewInternalError("no compiled result to report on")
	}
	scr.Result = cr.ToScreeningResult()

	reports, err := o.reports.Generate(ctx, scr.ID, cr)
	if err != nil {
		return err
	}
	for _, r := range reports {
		scr.Reports = append(scr.Reports, r.Meta)
	}
	return nil
}

// saveProfile appends the post-screening profile version; monitoring's delta
// detector diffs consecutive versions. Failure to persist degrades monitoring
// but not this screening.
func (o *Orchestrator) saveProfile(ctx context.Context, entityID uuid.UUID, cr *CompiledResult) {
	if o.profiles == nil {
		return
	}
	blob, err := json.Marshal(cr)
	if err != nil {
		o.logger.Warn("profile snapshot marshal failed", zap.Error(err))
		return
	}
	if err := o.profiles.Create(ctx, &entity.Profile{
		EntityID:  entityID,
		Trigger:   entity.TriggerScreening,
		Findings:  blob,
		RiskScore: cr.Risk.Overall,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		o.logger.Warn("profile snapshot write failed",
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
	}
}

func (o *Orchestrator) fail(ctx context.Context, scr *Screening, phase PhaseName, err error) {
	scr.Status = StatusFailed
	scr.Error = err.Error()
	o.logger.Error("screening failed",
		zap.String("screening_id", scr.ID.String()),
		zap.String("phase", string(phase)),
		zap.Error(err))
	o.audit(ctx, audit.EventScreeningFailed, scr, map[string]interface{}{
		"phase": string(phase),
		"error": err.Error(),
	})
}

func (o *Orchestrator) audit(ctx context.Context, t audit.EventType, scr *Screening, data map[string]interface{}) {
	e, err := audit.NewEvent(t, "screening", scr.ID.String())
	if err != nil {
		return
	}
	for k, v := range data {
		e.WithData(k, v)
	}
	o.auditLog.Log(ctx, e)
}
