package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"network/internal/api"
	"network/internal/models"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) NewPost(ctx context.Context, text string) (*models.Post, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockAPI) NewComment(ctx context.Context, in models.NewComment) (*models.Post, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockAPI) EditPost(ctx context.Context, postID int, text string) (*models.EditedPost, error) {
	args := m.Called(ctx, postID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EditedPost), args.Error(1)
}

func (m *MockAPI) LikePost(ctx context.Context, postID int) (*models.LikeResult, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LikeResult), args.Error(1)
}

func (m *MockAPI) Follow(ctx context.Context, username string, postID *int) (*models.FollowResult, error) {
	args := m.Called(ctx, username, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FollowResult), args.Error(1)
}

func (m *MockAPI) UpdateProfile(ctx context.Context, form models.ProfileUpdate, photo *api.FilePart) (*models.ProfileUpdateResult, error) {
	args := m.Called(ctx, form, photo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProfileUpdateResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(message string) {
	m.Called(message)
}
