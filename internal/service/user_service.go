package service

import (
	"context"
	"fmt"

	"network/internal/api"
	"network/internal/models"
)

type UserService interface {
	// Follow toggles following username, refetches key and shows the
	// server's confirmation as a toast.
	Follow(ctx context.Context, key models.QueryKey, username string, postID *int) (*models.FollowResult, error)

	// UpdateProfile reports whether the edit form stays open: it does when
	// the form has validation errors or the request failed.
	UpdateProfile(ctx context.Context, key models.QueryKey, form models.ProfileUpdate, photo *api.FilePart) (*models.ProfileUpdateResult, bool, error)
}

type userService struct {
	*base
	toast Notifier
}

func newUserService(b *base, toast Notifier) UserService {
	return &userService{base: b, toast: toast}
}

func (s *userService) Follow(ctx context.Context, key models.QueryKey, username string, postID *int) (*models.FollowResult, error) {
	if username == "" {
		return nil, &ValidationError{Fields: models.FieldErrors{"username": "This field is required."}}
	}

	res, err := s.api.Follow(ctx, username, postID)
	if err != nil {
		return nil, fmt.Errorf("follow %s: %w", username, err)
	}

	s.refresh(ctx, key)
	if s.toast != nil && res.Message != "" {
		s.toast.Notify(res.Message)
	}
	return res, nil
}

func (s *userService) UpdateProfile(ctx context.Context, key models.QueryKey, form models.ProfileUpdate, photo *api.FilePart) (*models.ProfileUpdateResult, bool, error) {
	form, errs := s.validation.checkProfile(form)
	if len(errs) > 0 {
		return &models.ProfileUpdateResult{Errors: errs}, true, nil
	}

	res, err := s.api.UpdateProfile(ctx, form, photo)
	if err != nil {
		return nil, true, fmt.Errorf("update profile: %w", err)
	}
	if res.HasErrors() {
		s.logger.Debug("profile update rejected", "fields", len(res.Errors))
		return res, true, nil
	}

	s.refresh(ctx, key)
	return res, false, nil
}
