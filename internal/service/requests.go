package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kplays-api/internal/model"
	"kplays-api/internal/repository"
)

// RequestService accepts visitor requests for new games.
type RequestService struct {
	repo repository.RequestRepository
	now  func() time.Time
}

// NewRequestService creates a new request service.
func NewRequestService(repo repository.RequestRepository) *RequestService {
	return &RequestService{repo: repo, now: time.Now}
}

// Submit validates and stores a request. Game name and platform are required.
func (s *RequestService) Submit(ctx context.Context, r model.GameRequest) (*model.GameRequest, error) {
	r.GameName = strings.TrimSpace(r.GameName)
	r.UserName = strings.TrimSpace(r.UserName)
	r.UserEmail = strings.TrimSpace(r.UserEmail)
	r.Description = strings.TrimSpace(r.Description)

	if r.GameName == "" {
		return nil, fmt.Errorf("%w: game name is required", ErrInvalidInput)
	}
	c, ok := model.ParseCategory(r.Platform)
	if !ok || c == model.CategoryAll {
		return nil, fmt.Errorf("%w: platform must be pc or android", ErrInvalidCategory)
	}
	r.Platform = string(c)
	r.ID = ""
	r.CreatedAt = s.now().UTC()

	if err := s.repo.CreateRequest(ctx, &r); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}
	return &r, nil
}
