package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"buildmatch/internal/domain"
	"buildmatch/internal/policy"
)

// CreateOrganization registers a developer organization.
func (e Engine) CreateOrganization(ctx context.Context, name string) (domain.Organization, error) {
	if name == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	o := domain.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOrg(ctx, tx, o); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return o, nil
}

// UserCreateOptions seed an identity snapshot. Professionals get a profile
// created and linked in the same transaction.
type UserCreateOptions struct {
	Email       string
	FullName    string
	Role        domain.Role
	OrgID       string
	CompanyName string
	Bio         string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Email == "" {
		return domain.User{}, errors.New("email is required")
	}
	if opts.FullName == "" {
		return domain.User{}, errors.New("full_name is required")
	}
	switch opts.Role {
	case domain.RoleDeveloper:
		if opts.OrgID == "" {
			return domain.User{}, errors.New("org is required for developers")
		}
		if _, err := e.Repo.GetOrg(ctx, opts.OrgID); err != nil {
			return domain.User{}, err
		}
	case domain.RoleProfessional, domain.RoleAdmin:
	default:
		return domain.User{}, fmt.Errorf("invalid role %s", opts.Role)
	}
	now := e.timestamp()
	u := domain.User{
		ID:        uuid.New().String(),
		Email:     opts.Email,
		FullName:  opts.FullName,
		Role:      opts.Role,
		CreatedAt: now,
	}
	if opts.Role == domain.RoleDeveloper {
		u.DeveloperOrgID = &opts.OrgID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if opts.Role == domain.RoleProfessional {
		profile := domain.ProfessionalProfile{
			ID:          uuid.New().String(),
			UserID:      u.ID,
			CompanyName: opts.CompanyName,
			Bio:         opts.Bio,
			CreatedAt:   now,
		}
		if err := e.Repo.InsertProfile(ctx, tx, profile); err != nil {
			return domain.User{}, err
		}
		if err := e.Repo.SetUserProfile(ctx, tx, u.ID, profile.ID); err != nil {
			return domain.User{}, err
		}
		u.ProfessionalProfileID = &profile.ID
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// AddQualification records a credential on the caller's own profile.
func (e Engine) AddQualification(ctx context.Context, p policy.Principal, title string, authority, credentialID *string) (domain.Qualification, error) {
	if p.ProfileID == "" {
		return domain.Qualification{}, errors.New("professional profile required")
	}
	if title == "" {
		return domain.Qualification{}, errors.New("title is required")
	}
	q := domain.Qualification{
		ID:           uuid.New().String(),
		ProfileID:    p.ProfileID,
		Title:        title,
		Authority:    authority,
		CredentialID: credentialID,
		CreatedAt:    e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Qualification{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertQualification(ctx, tx, q); err != nil {
		return domain.Qualification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Qualification{}, err
	}
	return q, nil
}

// RemoveQualification deletes a credential scoped to the caller's profile.
// Already-submitted bids keep their assembled snapshots untouched.
func (e Engine) RemoveQualification(ctx context.Context, p policy.Principal, id string) error {
	if p.ProfileID == "" {
		return errors.New("professional profile required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteQualification(ctx, tx, id, p.ProfileID); err != nil {
		return err
	}
	return tx.Commit()
}

// PortfolioItemOptions describe a past project entry.
type PortfolioItemOptions struct {
	Title       string
	Description string
	Location    *string
	Units       *int
}

func (e Engine) AddPortfolioItem(ctx context.Context, p policy.Principal, opts PortfolioItemOptions) (domain.PortfolioItem, error) {
	if p.ProfileID == "" {
		return domain.PortfolioItem{}, errors.New("professional profile required")
	}
	if opts.Title == "" {
		return domain.PortfolioItem{}, errors.New("title is required")
	}
	item := domain.PortfolioItem{
		ID:          uuid.New().String(),
		ProfileID:   p.ProfileID,
		Title:       opts.Title,
		Description: opts.Description,
		Location:    opts.Location,
		Units:       opts.Units,
		CreatedAt:   e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PortfolioItem{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPortfolioItem(ctx, tx, item); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PortfolioItem{}, err
	}
	return item, nil
}

func (e Engine) RemovePortfolioItem(ctx context.Context, p policy.Principal, id string) error {
	if p.ProfileID == "" {
		return errors.New("professional profile required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeletePortfolioItem(ctx, tx, id, p.ProfileID); err != nil {
		return err
	}
	return tx.Commit()
}

// Directory lists professional profiles, best rated first.
func (e Engine) Directory(ctx context.Context) ([]domain.ProfessionalProfile, error) {
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.ProfessionalProfile{}
	}
	return profiles, nil
}

// GetProfessional returns one directory profile.
func (e Engine) GetProfessional(ctx context.Context, id string) (domain.ProfessionalProfile, error) {
	return e.Repo.GetProfile(ctx, id)
}
