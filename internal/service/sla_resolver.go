package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/repository"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

type defaultSLA struct {
	name              string
	description       string
	responseMinutes   int
	resolutionHours   int
	businessHoursOnly bool
}

// defaultSLAs is materialized on first use of a priority without a definition.
var defaultSLAs = map[domain.Priority]defaultSLA{
	domain.PriorityCritical: {"Critical SLA", "SLA for critical priority tickets", 30, 4, false},
	domain.PriorityHigh:     {"High SLA", "SLA for high priority tickets", 60, 8, true},
	domain.PriorityMedium:   {"Medium SLA", "SLA for medium priority tickets", 240, 24, true},
	domain.PriorityLow:      {"Low SLA", "SLA for low priority tickets", 480, 72, true},
}

// SLAResolver picks the SLA definition that applies to a ticket.
type SLAResolver struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewSLAResolver builds a resolver.
func NewSLAResolver(store repository.Store, logger *zap.Logger, now func() time.Time) *SLAResolver {
	return &SLAResolver{store: store, logger: loggerOrNop(logger), now: clockOrDefault(now)}
}

// Resolve returns the active definition for (priority, category), falling back
// to the priority-wide definition and finally to the built-in default.
func (r *SLAResolver) Resolve(ctx context.Context, priority domain.Priority, category *string) (*domain.SLADefinition, error) {
	return r.resolve(ctx, r.store, priority, category)
}

func (r *SLAResolver) resolve(ctx context.Context, st repository.Store, priority domain.Priority, category *string) (*domain.SLADefinition, error) {
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	defs := st.SLADefinitions()

	if category != nil && strings.TrimSpace(*category) != "" {
		def, err := defs.FindActive(ctx, priority, category)
		if err == nil {
			return def, nil
		}
		if !isNotFound(err) {
			return nil, apperrors.MapError(err)
		}
	}

	def, err := defs.FindActive(ctx, priority, nil)
	if err == nil {
		return def, nil
	}
	if !isNotFound(err) {
		return nil, apperrors.MapError(err)
	}
	return r.materializeDefault(ctx, st, priority)
}

func (r *SLAResolver) materializeDefault(ctx context.Context, st repository.Store, priority domain.Priority) (*domain.SLADefinition, error) {
	def := newDefaultDefinition(priority, r.now())
	created, err := st.SLADefinitions().CreateIfAbsent(ctx, def)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !created {
		// A concurrent caller won the insert.
		existing, err := st.SLADefinitions().FindActive(ctx, priority, nil)
		if err != nil {
			return nil, repoError(err, "sla definition", map[string]any{"priority": priority})
		}
		return existing, nil
	}
	r.logger.Info("materialized default sla definition",
		zap.String("priority", string(priority)),
		zap.String("sla_definition_id", def.ID))
	return def, nil
}

func newDefaultDefinition(priority domain.Priority, now time.Time) *domain.SLADefinition {
	d := defaultSLAs[priority]
	return &domain.SLADefinition{
		ID:                      uuid.NewString(),
		Name:                    d.name,
		Description:             d.description,
		Priority:                priority,
		ResponseTimeMinutes:     d.responseMinutes,
		ResolutionTimeHours:     d.resolutionHours,
		BusinessHoursOnly:       d.businessHoursOnly,
		WarningThresholdPercent: domain.DefaultWarningThresholdPercent,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// EnsureDefaults materializes the default definition of every priority that has none.
func (r *SLAResolver) EnsureDefaults(ctx context.Context) error {
	for _, priority := range domain.Priorities {
		if _, err := r.Resolve(ctx, priority, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateDefinitionInput describes a new SLA policy.
type CreateDefinitionInput struct {
	Name                    string
	Description             string
	Priority                domain.Priority
	Category                *string
	ResponseTimeMinutes     int
	ResolutionTimeHours     int
	BusinessHoursOnly       bool
	WarningThresholdPercent int
}

// CreateDefinition stores a policy; a second policy for the same
// (priority, category) is a conflict.
func (r *SLAResolver) CreateDefinition(ctx context.Context, in CreateDefinitionInput) (*domain.SLADefinition, error) {
	details := map[string]any{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "required"
	}
	if !in.Priority.Valid() {
		details["priority"] = "must be one of critical, high, medium, low"
	}
	if in.ResponseTimeMinutes <= 0 {
		details["response_time_minutes"] = "must be positive"
	}
	if in.ResolutionTimeHours <= 0 {
		details["resolution_time_hours"] = "must be positive"
	}
	if in.WarningThresholdPercent < 0 || in.WarningThresholdPercent > 100 {
		details["warning_threshold_percent"] = "must be between 1 and 100"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid sla definition", details)
	}
	threshold := in.WarningThresholdPercent
	if threshold == 0 {
		threshold = domain.DefaultWarningThresholdPercent
	}

	var category *string
	if in.Category != nil {
		category = optionalString(*in.Category)
	}

	now := r.now()
	def := &domain.SLADefinition{
		ID:                      uuid.NewString(),
		Name:                    strings.TrimSpace(in.Name),
		Description:             strings.TrimSpace(in.Description),
		Priority:                in.Priority,
		Category:                category,
		ResponseTimeMinutes:     in.ResponseTimeMinutes,
		ResolutionTimeHours:     in.ResolutionTimeHours,
		BusinessHoursOnly:       in.BusinessHoursOnly,
		WarningThresholdPercent: threshold,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := r.store.SLADefinitions().Create(ctx, def); err != nil {
		return nil, repoError(err, "sla definition", map[string]any{"priority": in.Priority, "category": category})
	}
	return def, nil
}

// ListDefinitions returns every stored policy.
func (r *SLAResolver) ListDefinitions(ctx context.Context) ([]domain.SLADefinition, error) {
	defs, err := r.store.SLADefinitions().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return defs, nil
}
