package storage

import (
	"context"
	"errors"

	"github.com/aerocall/backend/internal/types"
	"github.com/rs/zerolog"
)

// ErrUserNotFound is returned when no profile matches the lookup
var ErrUserNotFound = errors.New("user not found")

// Store is the user directory: team members, their extensions and the
// caller IDs they may dial from
type Store interface {
	GetUser(ctx context.Context, userID string) (*types.UserProfile, error)
	FindUserByEmail(ctx context.Context, email string) (*types.UserProfile, error)
	ListTeam(ctx context.Context, teamID string) ([]types.UserProfile, error)
	PutUser(ctx context.Context, user types.UserProfile) error
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none), using in-memory user directory")
		return NewMemoryStore(), nil
	}
}

// Lookup is the read side of Store used to resolve signed-in users
type Lookup interface {
	GetUser(ctx context.Context, userID string) (*types.UserProfile, error)
	FindUserByEmail(ctx context.Context, email string) (*types.UserProfile, error)
}

// Resolve finds the profile for a token subject, falling back to email when
// the directory is keyed by another identity provider's IDs
func Resolve(ctx context.Context, users Lookup, subject, email string) (*types.UserProfile, error) {
	if subject != "" {
		user, err := users.GetUser(ctx, subject)
		if err == nil || !errors.Is(err, ErrUserNotFound) || email == "" {
			return user, err
		}
	}
	if email == "" {
		return nil, ErrUserNotFound
	}
	return users.FindUserByEmail(ctx, email)
}
