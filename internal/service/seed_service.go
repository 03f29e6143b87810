package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/domain"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

type defaultGroup struct {
	name        string
	description string
	email       string
}

var defaultGroups = []defaultGroup{
	{"IT Service Desk", "First-line IT support for general issues", "servicedesk@company.com"},
	{"Identity Management", "User account and identity services", "identity@company.com"},
	{"Access Management", "Access control and permissions", "access@company.com"},
	{"Infrastructure", "Server and infrastructure support", "infrastructure@company.com"},
	{"Network Operations", "Network and connectivity support", "network@company.com"},
	{"Security Operations", "Security incident response", "security@company.com"},
	{"Desktop Support", "Desktop and software support", "desktop@company.com"},
	{"IT Assets", "Hardware and asset management", "assets@company.com"},
	{"Operations", "General operations and work orders", "operations@company.com"},
	{"SAP User Management", "SAP system user administration and password resets", "sap-admin@company.com"},
}

type defaultMapping struct {
	category    string
	subcategory string
	group       string
}

var defaultMappings = []defaultMapping{
	{"User Account", "", "Identity Management"},
	{"User Account", "Account Creation", "Identity Management"},
	{"User Account", "Password Reset", "SAP User Management"},
	{"Access", "", "Access Management"},
	{"Access", "Access Request", "Access Management"},
	{"Hardware", "", "IT Assets"},
	{"Hardware", "Hardware Request", "IT Assets"},
	{"Hardware", "Hardware Repair", "Desktop Support"},
	{"Software", "", "Desktop Support"},
	{"Software", "Software Installation", "Desktop Support"},
	{"Network", "", "Network Operations"},
	{"Network", "Connectivity", "Network Operations"},
	{"Network", "VPN", "Network Operations"},
	{"Security", "", "Security Operations"},
	{"Security", "Security Incident", "Security Operations"},
	{"System", "", "Infrastructure"},
	{"System", "Alert", "Infrastructure"},
	{"Work Order", "", "Operations"},
	{"General", "", "IT Service Desk"},
}

// SeedResult counts what a seed run created.
type SeedResult struct {
	Groups   int
	Mappings int
}

// Seeder installs the default SLA definitions, assignment groups and
// category routing. Running it again only fills what is missing.
type Seeder struct {
	resolver   *SLAResolver
	assignment *AssignmentService
	logger     *zap.Logger
}

// NewSeeder builds a seeder.
func NewSeeder(resolver *SLAResolver, assignment *AssignmentService, logger *zap.Logger) *Seeder {
	return &Seeder{resolver: resolver, assignment: assignment, logger: loggerOrNop(logger)}
}

// Seed runs every default installer.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	if err := s.resolver.EnsureDefaults(ctx); err != nil {
		return nil, err
	}
	result := &SeedResult{}

	groups := make(map[string]string, len(defaultGroups))
	for _, g := range defaultGroups {
		group, err := s.assignment.CreateGroup(ctx, CreateGroupInput{Name: g.name, Description: g.description, Email: g.email})
		switch {
		case err == nil:
			result.Groups++
		case apperrors.IsConflict(err):
			group, err = s.assignment.store.Assignments().FindActiveGroupByName(ctx, g.name)
			if isNotFound(err) {
				// Deactivated by an operator; leave it that way.
				continue
			}
			if err != nil {
				return nil, apperrors.MapError(err)
			}
		default:
			return nil, err
		}
		groups[g.name] = group.ID
	}

	for _, m := range defaultMappings {
		groupID, ok := groups[m.group]
		if !ok {
			continue
		}
		_, err := s.assignment.CreateMapping(ctx, CreateMappingInput{
			Category:    m.category,
			Subcategory: optionalString(m.subcategory),
			GroupID:     groupID,
		})
		switch {
		case err == nil:
			result.Mappings++
		case apperrors.IsConflict(err):
		default:
			return nil, err
		}
	}

	s.logger.Info("defaults seeded",
		zap.Int("priorities", len(domain.Priorities)),
		zap.Int("groups_created", result.Groups),
		zap.Int("mappings_created", result.Mappings))
	return result, nil
}
