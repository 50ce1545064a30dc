// Package users registers and looks up participants.
package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// Store is the persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, id, username string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Service manages users.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a user service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Create registers a user at level 0 with no XP.
func (s *Service) Create(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, uuid.NewString(), params.Username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user.id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalid)
	}
	return s.store.GetUser(ctx, id)
}
