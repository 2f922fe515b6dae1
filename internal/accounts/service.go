package accounts

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/aegis-admin/aegis/internal/shared"
)

// Service is the account lifecycle coordinator: it orchestrates profile
// persistence and role-membership changes as one logical operation, while
// delegating storage to the repository.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	collator *collate.Collator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		collator: collate.New(language.English, collate.IgnoreCase),
	}
}

// CreateInput carries a submitted create-user form.
type CreateInput struct {
	Username  string `validate:"required"`
	FirstName string
	LastName  string
	Email     string `validate:"required,email"`
	Phone     string `validate:"omitempty,numeric"`
	Password  string
	Roles     []string
}

// UpdateInput carries a submitted edit-user form. Roles is the full desired
// role selection; EditableRoles limits the membership diff to the rows the
// actor was allowed to toggle, so checkboxes outside the actor's authority
// are neither added nor removed.
type UpdateInput struct {
	Username      string `validate:"required"`
	FirstName     string
	LastName      string
	Email         string `validate:"required,email"`
	Phone         string `validate:"omitempty,numeric"`
	Password      string
	Roles         []string
	EditableRoles []string
}

func (s *Service) fieldErrors(input any) shared.ErrorList {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var errs shared.ErrorList
	for _, fieldErr := range err.(validator.ValidationErrors) {
		switch {
		case fieldErr.Field() == "Email" && fieldErr.Tag() != "required":
			errs = append(errs, "The email is not valid.")
		case fieldErr.Field() == "Phone":
			errs = append(errs, "The phone number can only be in numbers.")
		default:
			errs = append(errs, "The "+strings.ToLower(fieldErr.Field())+" field is required.")
		}
	}
	return errs
}

// Create validates the input, hashes the credential, persists the user, and
// applies the selected roles. On failure the caller receives the structured
// error list for redisplay; the submitted input is never partially saved.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	errs := s.fieldErrors(input)
	if input.Password == "" {
		errs = append(errs, "The password field is required.")
	} else {
		errs = append(errs, ValidatePassword(input.Password)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := minuteNow()
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	for _, role := range input.Roles {
		if err := s.repo.AddRole(ctx, user.ID, role); err != nil {
			return user, shared.Errors(err)
		}
		user.Roles = append(user.Roles, role)
	}
	return user, nil
}

// Update applies profile changes, an optional password change, and the role
// membership diff. A rejected password aborts the entire update before any
// field is saved.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	errs := s.fieldErrors(input)
	var hash string
	if input.Password != "" {
		errs = append(errs, ValidatePassword(input.Password)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if input.Password != "" {
		if hash, err = HashPassword(input.Password); err != nil {
			return nil, err
		}
	}

	if err := s.SyncRoles(ctx, id, input.Roles, input.EditableRoles); err != nil {
		return nil, err
	}

	user.Username = input.Username
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.Email = input.Email
	user.Phone = input.Phone
	user.UpdatedAt = minuteNow()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	if hash != "" {
		if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}

	user.Roles, err = s.repo.RolesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SyncRoles reconciles the user's membership with the desired set. The
// diff (to-add, to-remove) is computed up front over the editable roles
// only, then applied as independent calls: a mid-sequence failure leaves
// earlier changes committed, and re-submitting the same selection
// converges because each call is idempotent.
func (s *Service) SyncRoles(ctx context.Context, id uuid.UUID, desired, editable []string) error {
	current, err := s.repo.RolesOf(ctx, id)
	if err != nil {
		return err
	}
	currentSet := make(map[string]bool, len(current))
	for _, role := range current {
		currentSet[role] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, role := range desired {
		desiredSet[role] = true
	}

	var toAdd, toRemove []string
	for _, role := range editable {
		switch {
		case desiredSet[role] && !currentSet[role]:
			toAdd = append(toAdd, role)
		case !desiredSet[role] && currentSet[role]:
			toRemove = append(toRemove, role)
		}
	}

	for _, role := range toAdd {
		if err := s.repo.AddRole(ctx, id, role); err != nil {
			return shared.Errors(err)
		}
	}
	for _, role := range toRemove {
		if err := s.repo.RemoveRole(ctx, id, role); err != nil {
			return shared.Errors(err)
		}
	}
	return nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByEmail loads a user by unique email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// RolesOf reads the user's current role memberships from the store.
func (s *Service) RolesOf(ctx context.Context, id uuid.UUID) ([]string, error) {
	return s.repo.RolesOf(ctx, id)
}

// Delete removes the target user. Authorization against the actor's
// current roles is the handler's responsibility and must happen before
// this call.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return shared.Errors(err)
	}
	return nil
}

// ListQuery describes the user listing parameters.
type ListQuery struct {
	Search  string
	Roles   []string
	SortBy  string
	SortDir string
	Page    int
	PerPage int
}

// List composes search, role filter, sort, and pagination over the full
// user set. The role filter runs before pagination so a page is cut from
// the filtered set, and sorting is total: ties on the sort key fall back
// to username ascending.
func (s *Service) List(ctx context.Context, query ListQuery) ([]User, shared.Pagination, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}

	if query.Search != "" {
		needle := strings.ToLower(query.Search)
		filtered := users[:0]
		for _, user := range users {
			haystack := strings.ToLower(user.Username + " " + user.FirstName + " " + user.LastName + " " + user.Email)
			if strings.Contains(haystack, needle) {
				filtered = append(filtered, user)
			}
		}
		users = filtered
	}

	if len(query.Roles) > 0 {
		wanted := make(map[string]bool, len(query.Roles))
		for _, role := range query.Roles {
			wanted[role] = true
		}
		filtered := users[:0]
		for _, user := range users {
			for _, role := range user.Roles {
				if wanted[role] {
					filtered = append(filtered, user)
					break
				}
			}
		}
		users = filtered
	}

	s.sortUsers(users, query.SortBy, query.SortDir)

	pagination := shared.NewPagination(query.Page, query.PerPage, len(users))
	start := pagination.Offset()
	if start > len(users) {
		start = len(users)
	}
	end := start + pagination.PerPage
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], pagination, nil
}

func (s *Service) sortUsers(users []User, sortBy, sortDir string) {
	desc := sortDir == "desc"
	key := func(u User) string {
		switch sortBy {
		case "name":
			return u.FirstName + " " + u.LastName
		case "email":
			return u.Email
		default:
			return u.Username
		}
	}

	sort.SliceStable(users, func(i, j int) bool {
		var cmp int
		if sortBy == "created" {
			switch {
			case users[i].CreatedAt.Before(users[j].CreatedAt):
				cmp = -1
			case users[i].CreatedAt.After(users[j].CreatedAt):
				cmp = 1
			}
		} else {
			cmp = s.collator.CompareString(key(users[i]), key(users[j]))
		}
		if cmp == 0 {
			return s.collator.CompareString(users[i].Username, users[j].Username) < 0
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
