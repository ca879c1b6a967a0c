// Package service implements the user actions: each one validates its
// input, makes one API call and then either refetches or patches the cached
// view it affects.
package service

import (
	"context"
	"errors"
	"log/slog"

	"network/internal/api"
	"network/internal/models"
	"network/internal/query"
)

// API is the subset of the API client the actions call.
type API interface {
	NewPost(ctx context.Context, text string) (*models.Post, error)
	NewComment(ctx context.Context, in models.NewComment) (*models.Post, error)
	EditPost(ctx context.Context, postID int, text string) (*models.EditedPost, error)
	LikePost(ctx context.Context, postID int) (*models.LikeResult, error)
	Follow(ctx context.Context, username string, postID *int) (*models.FollowResult, error)
	UpdateProfile(ctx context.Context, form models.ProfileUpdate, photo *api.FilePart) (*models.ProfileUpdateResult, error)
}

type Cache interface {
	Invalidate(ctx context.Context, key models.QueryKey) error
	InvalidateAsync(ctx context.Context, key models.QueryKey)
	Patch(ctx context.Context, key models.QueryKey, fn query.PatchFunc) error
}

type Notifier interface {
	Notify(message string)
}

type Service struct {
	Post    PostService
	Comment CommentService
	User    UserService
}

func NewService(client API, cache Cache, toast Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	b := &base{
		api:        client,
		cache:      cache,
		logger:     logger,
		validation: &validation{validate: newValidator()},
	}

	return &Service{
		Post:    newPostService(b),
		Comment: newCommentService(b),
		User:    newUserService(b, toast),
	}
}

type base struct {
	api        API
	cache      Cache
	logger     *slog.Logger
	validation *validation
}

// patch applies fn to the posts of the page cached under key. The server
// call already succeeded, so a patch that cannot be applied is not an
// error: a key that is not cached has nothing to update, and a page that
// no longer holds the post is refetched instead.
func (b *base) patch(ctx context.Context, key models.QueryKey, fn func([]models.Post) ([]models.Post, error)) {
	err := b.cache.Patch(ctx, key, query.PatchPosts(key.Shape(), fn))
	switch {
	case err == nil:
	case errors.Is(err, query.ErrNotCached):
		b.logger.Debug("nothing cached to patch", "key", key.String())
	default:
		b.logger.Warn("patch failed, refetching", "key", key.String(), "error", err)
		b.cache.InvalidateAsync(ctx, key)
	}
}

// refresh refetches key and waits for it. A failed refetch is logged and
// left on the cache entry for the view to show.
func (b *base) refresh(ctx context.Context, key models.QueryKey) {
	if err := b.cache.Invalidate(ctx, key); err != nil {
		b.logger.Warn("refetch after mutation failed", "key", key.String(), "error", err)
	}
}
