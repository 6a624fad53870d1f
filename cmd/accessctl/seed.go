package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	goAccess "github.com/MrEthical07/goAccess"
)

// seedFile is the YAML document read by the seed command. Admins are created in order,
// so created_by may name any admin listed earlier or already stored.
type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
	Admins  []seedAdmin  `yaml:"admins"`
	Users   []seedUser   `yaml:"users"`
}

type seedTenant struct {
	Name     string            `yaml:"name"`
	Slug     string            `yaml:"slug"`
	Domain   string            `yaml:"domain"`
	Email    string            `yaml:"email"`
	Status   string            `yaml:"status"`
	Plan     string            `yaml:"plan"`
	Features []string          `yaml:"features"`
	Settings map[string]string `yaml:"settings"`
}

type seedAdmin struct {
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	Name        string   `yaml:"name"`
	Role        string   `yaml:"role"`
	Permissions []string `yaml:"permissions"`
	Inactive    bool     `yaml:"inactive"`
	CreatedBy   string   `yaml:"created_by"`
}

type seedUser struct {
	Email       string           `yaml:"email"`
	Password    string           `yaml:"password"`
	FirstName   string           `yaml:"first_name"`
	LastName    string           `yaml:"last_name"`
	Role        string           `yaml:"role"`
	Status      string           `yaml:"status"`
	Permissions []string         `yaml:"permissions"`
	Tenants     []seedMembership `yaml:"tenants"`
}

type seedMembership struct {
	Slug        string   `yaml:"slug"`
	Role        string   `yaml:"role"`
	Permissions []string `yaml:"permissions"`
}

// seedResult counts what apply created; existing rows are skipped, not counted.
type seedResult struct {
	Tenants     int
	Admins      int
	Users       int
	Memberships int
}

func parseSeed(r io.Reader) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return seedFile{}, nil
		}
		return seedFile{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return f, nil
}

// apply creates every entry in f. Entries whose email, slug or membership already exist
// are left untouched so a seed file can be applied repeatedly.
func (f seedFile) apply(ctx context.Context, e *goAccess.Engine) (seedResult, error) {
	var res seedResult

	for _, st := range f.Tenants {
		_, err := e.CreateTenant(ctx, goAccess.Tenant{
			Name:             st.Name,
			Slug:             st.Slug,
			Domain:           st.Domain,
			Email:            st.Email,
			Status:           goAccess.TenantStatus(st.Status),
			SubscriptionPlan: st.Plan,
			Features:         st.Features,
			Settings:         st.Settings,
		})
		switch {
		case err == nil:
			res.Tenants++
		case errors.Is(err, goAccess.ErrSlugTaken), errors.Is(err, goAccess.ErrDomainTaken):
		default:
			return res, fmt.Errorf("tenant %q: %w", st.Slug, err)
		}
	}

	for _, sa := range f.Admins {
		var creatorID string
		if sa.CreatedBy != "" {
			creator, err := e.FindAccountByEmail(ctx, goAccess.KindAdmin, sa.CreatedBy)
			if err != nil {
				return res, fmt.Errorf("admin %q: creator %q: %w", sa.Email, sa.CreatedBy, err)
			}
			creatorID = creator.ID
		}

		_, err := e.CreateAdmin(ctx, goAccess.NewAdmin{
			Email:       sa.Email,
			Password:    sa.Password,
			Name:        sa.Name,
			Role:        goAccess.Role(sa.Role),
			Permissions: sa.Permissions,
			Inactive:    sa.Inactive,
			CreatedBy:   creatorID,
		})
		switch {
		case err == nil:
			res.Admins++
		case errors.Is(err, goAccess.ErrEmailTaken):
		default:
			return res, fmt.Errorf("admin %q: %w", sa.Email, err)
		}
	}

	for _, su := range f.Users {
		user, err := e.CreateUser(ctx, goAccess.NewUser{
			Email:       su.Email,
			Password:    su.Password,
			FirstName:   su.FirstName,
			LastName:    su.LastName,
			Role:        goAccess.Role(su.Role),
			Status:      goAccess.UserStatus(su.Status),
			Permissions: su.Permissions,
		})
		switch {
		case err == nil:
			res.Users++
		case errors.Is(err, goAccess.ErrEmailTaken):
			if user, err = e.FindAccountByEmail(ctx, goAccess.KindUser, su.Email); err != nil {
				return res, fmt.Errorf("user %q: %w", su.Email, err)
			}
		default:
			return res, fmt.Errorf("user %q: %w", su.Email, err)
		}

		for _, sm := range su.Tenants {
			tenant, err := e.TenantBySlug(ctx, sm.Slug)
			if err != nil {
				return res, fmt.Errorf("user %q: tenant %q: %w", su.Email, sm.Slug, err)
			}
			_, err = e.JoinTenant(ctx, user.ID, tenant.ID, goAccess.MembershipOptions{
				Role:        sm.Role,
				Permissions: sm.Permissions,
			})
			switch {
			case err == nil:
				res.Memberships++
			case errors.Is(err, goAccess.ErrAlreadyMember):
			default:
				return res, fmt.Errorf("user %q: join %q: %w", su.Email, sm.Slug, err)
			}
		}
	}

	return res, nil
}

func runSeed(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "seed")
	path := fs.String("file", "seed.yaml", "YAML seed file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fh, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer fh.Close()

	f, err := parseSeed(fh)
	if err != nil {
		return err
	}

	return a.withEngine(ctx, func(e *goAccess.Engine) error {
		res, err := f.apply(ctx, e)
		if err != nil {
			return err
		}
		a.log.Info("seed applied",
			"tenants", res.Tenants,
			"admins", res.Admins,
			"users", res.Users,
			"memberships", res.Memberships,
		)
		return nil
	})
}
