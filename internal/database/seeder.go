// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"time"

	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"github.com/rs/zerolog"
)

// SeedAdmin creates the first admin account when no admin exists yet.
func SeedAdmin(ctx context.Context, users repository.UserRepository, username, password string, log zerolog.Logger) error {
	count, err := users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug().Msg("admin already exists, seeding skipped")
		return nil
	}
	if password == "" {
		return errors.New("no admin account exists and ADMIN_PASSWORD is empty")
	}

	log.Info().Str("username", username).Msg("admin not found, seeding")
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	admin := &models.User{
		Username:         username,
		Name:             "Administrator",
		Password:         hashedPassword,
		Role:             models.RoleAdmin,
		Permissions:      models.DefaultPermissions(models.RoleAdmin),
		Status:           models.UserStatusActive,
		PinSetupRequired: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	log.Info().Msg("admin seeded successfully")
	return nil
}
