package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fansite/cmd/identity"
)

// SeedAdmin makes sure the configured admin account exists with the Admin
// role. An existing account is promoted; its password is left untouched.
// Nothing happens when no admin email is configured.
func SeedAdmin(ctx context.Context, users identity.Store, cfg Config, log Logger) error {
	email := identity.NormalizeEmail(cfg.AdminEmail)
	if email == "" {
		return nil
	}

	u, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == identity.RoleAdmin {
			return nil
		}
		if err := users.SetRole(ctx, u.ID, identity.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin: promote: %w", err)
		}
		log.Info("seed.admin.promoted", "user_id", u.ID)
		return nil
	case !identity.IsNotFound(err):
		return fmt.Errorf("seed admin: lookup: %w", err)
	}

	if strings.TrimSpace(cfg.AdminPassword) == "" {
		return errors.New("seed admin: FANSITE_ADMIN_PASSWORD is required to create the admin account")
	}

	u, err = users.CreateUser(ctx, identity.CreateUserInput{
		Email:    email,
		UserName: cfg.AdminUserName,
		Password: cfg.AdminPassword,
		Role:     identity.RoleAdmin,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			// Lost a race with another instance; it created the same admin.
			return nil
		}
		return fmt.Errorf("seed admin: create: %w", err)
	}
	log.Info("seed.admin.created", "user_id", u.ID)
	return nil
}
