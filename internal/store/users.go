package store

import (
	"context"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, email, name string) (models.User, error) {
	u := models.User{Email: email, Name: name}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}
