package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/itsm-sla/internal/domain"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// CreateUserInput describes a requester or agent.
type CreateUserInput struct {
	FullName string
	Email    string
}

// CreateUser registers a user; emails are unique.
func (s *AssignmentService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	details := map[string]any{}
	if name == "" {
		details["full_name"] = "required"
	}
	if email == "" || !strings.Contains(email, "@") {
		details["email"] = "must be a valid email"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}
	user := &domain.User{
		ID:        uuid.NewString(),
		FullName:  name,
		Email:     email,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, repoError(err, "user", map[string]any{"email": email})
	}
	return user, nil
}

// CreateGroupInput describes an assignment group.
type CreateGroupInput struct {
	Name        string
	Description string
	Email       string
	ManagerID   *string
}

// CreateGroup adds an active assignment group; names are unique.
func (s *AssignmentService) CreateGroup(ctx context.Context, in CreateGroupInput) (*domain.AssignmentGroup, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("invalid assignment group", map[string]any{"name": "required"})
	}
	now := s.now()
	group := &domain.AssignmentGroup{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Email:       strings.TrimSpace(in.Email),
		ManagerID:   in.ManagerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Assignments().CreateGroup(ctx, group); err != nil {
		return nil, repoError(err, "assignment group", map[string]any{"name": name})
	}
	return group, nil
}

// AddMember puts a user into a group with a fresh round-robin state.
func (s *AssignmentService) AddMember(ctx context.Context, groupID, userID string) (*domain.AssignmentGroupMember, error) {
	member := &domain.AssignmentGroupMember{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		UserID:    userID,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.store.Assignments().AddMember(ctx, member); err != nil {
		return nil, repoError(err, "assignment group member", map[string]any{"group_id": groupID, "user_id": userID})
	}
	return member, nil
}

// CreateMappingInput routes a category, optionally narrowed to a subcategory.
type CreateMappingInput struct {
	Category         string
	Subcategory      *string
	GroupID          string
	PriorityOverride *domain.Priority
}

// CreateMapping adds a routing row.
func (s *AssignmentService) CreateMapping(ctx context.Context, in CreateMappingInput) (*domain.CategoryAssignmentMapping, error) {
	category := strings.TrimSpace(in.Category)
	details := map[string]any{}
	if category == "" {
		details["category"] = "required"
	}
	if in.PriorityOverride != nil && !in.PriorityOverride.Valid() {
		details["priority_override"] = "must be one of critical, high, medium, low"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid category mapping", details)
	}
	var subcategory *string
	if in.Subcategory != nil {
		subcategory = optionalString(*in.Subcategory)
	}
	mapping := &domain.CategoryAssignmentMapping{
		ID:               uuid.NewString(),
		Category:         category,
		Subcategory:      subcategory,
		GroupID:          in.GroupID,
		PriorityOverride: in.PriorityOverride,
		CreatedAt:        s.now(),
	}
	if err := s.store.Assignments().CreateMapping(ctx, mapping); err != nil {
		return nil, repoError(err, "category mapping", map[string]any{"category": category, "subcategory": subcategory})
	}
	return mapping, nil
}
