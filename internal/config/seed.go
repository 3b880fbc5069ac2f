package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/prepaidrecon/internal/auth"
	"github.com/mmynk/prepaidrecon/internal/models"
)

// Seed is the bootstrap data applied at startup.
type Seed struct {
	Tolerances []ToleranceSeed       `yaml:"tolerances"`
	Periods    []models.FiscalPeriod `yaml:"periods"`
	Users      []UserSeed            `yaml:"users"`
}

// ToleranceSeed carries the amount as a string so it parses exactly.
type ToleranceSeed struct {
	ID       string `yaml:"id"`
	EntityID string `yaml:"entityId"`
	PeriodID string `yaml:"periodId"`
	Amount   string `yaml:"amount"`
}

// UserSeed is a bootstrap account.
type UserSeed struct {
	Email       string      `yaml:"email"`
	DisplayName string      `yaml:"displayName"`
	Password    string      `yaml:"password"`
	Role        models.Role `yaml:"role"`
	EntityIDs   []string    `yaml:"entityIds"`
}

// LoadSeed reads and parses a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses YAML seed data and validates tolerance amounts.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, t := range seed.Tolerances {
		if t.ID == "" {
			return nil, fmt.Errorf("tolerance %d: id is required", i)
		}
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			return nil, fmt.Errorf("tolerance %s: invalid amount %q: %w", t.ID, t.Amount, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("tolerance %s: amount must not be negative", t.ID)
		}
	}
	for i, p := range seed.Periods {
		if p.ID == "" {
			return nil, fmt.Errorf("period %d: id is required", i)
		}
	}
	return &seed, nil
}

// SeedStore is what Apply writes to.
type SeedStore interface {
	PutToleranceRule(ctx context.Context, rule models.ToleranceRule) error
	PutPeriod(ctx context.Context, p models.FiscalPeriod) error
}

// Apply upserts tolerances and periods and registers users that do not
// exist yet. It is safe to run on every start.
func (s *Seed) Apply(ctx context.Context, store SeedStore, authenticator auth.Authenticator) error {
	for _, t := range s.Tolerances {
		rule := models.ToleranceRule{
			ID:       t.ID,
			EntityID: t.EntityID,
			PeriodID: t.PeriodID,
			Amount:   decimal.RequireFromString(t.Amount),
		}
		if err := store.PutToleranceRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to seed tolerance %s: %w", t.ID, err)
		}
	}
	for _, p := range s.Periods {
		if err := store.PutPeriod(ctx, p); err != nil {
			return fmt.Errorf("failed to seed period %s: %w", p.ID, err)
		}
	}
	for _, u := range s.Users {
		_, err := authenticator.Register(ctx, auth.Registration{
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Credential:  u.Password,
			Role:        u.Role,
			EntityIDs:   u.EntityIDs,
		})
		if errors.Is(err, auth.ErrEmailExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
		slog.Info("Seeded user", "email", u.Email, "role", u.Role)
	}

	slog.Info("Seed applied", "tolerances", len(s.Tolerances), "periods", len(s.Periods), "users", len(s.Users))
	return nil
}
