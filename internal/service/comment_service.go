package service

import (
	"context"
	"fmt"

	"network/internal/models"
	"network/internal/query"
)

type CommentService interface {
	NewComment(ctx context.Context, key models.QueryKey, postID int, text string) (*models.Post, error)
	NewReply(ctx context.Context, key models.QueryKey, postID, commentID int, text string) (*models.Post, error)
}

type commentService struct {
	*base
}

func newCommentService(b *base) CommentService {
	return &commentService{base: b}
}

func (s *commentService) NewComment(ctx context.Context, key models.QueryKey, postID int, text string) (*models.Post, error) {
	return s.create(ctx, key, postID, nil, text)
}

func (s *commentService) NewReply(ctx context.Context, key models.QueryKey, postID, commentID int, text string) (*models.Post, error) {
	return s.create(ctx, key, postID, &commentID, text)
}

// create posts the comment and swaps the returned post into the cached page.
func (s *commentService) create(ctx context.Context, key models.QueryKey, postID int, commentID *int, text string) (*models.Post, error) {
	text, err := s.validation.checkText(text)
	if err != nil {
		return nil, err
	}

	post, err := s.api.NewComment(ctx, models.NewComment{
		Text:      text,
		PostID:    postID,
		CommentID: commentID,
	})
	if err != nil {
		return nil, fmt.Errorf("new comment on post %d: %w", postID, err)
	}

	updated := *post
	if updated.ID == 0 {
		updated.ID = postID
	}
	s.patch(ctx, key, query.ReplacePost(updated))
	return post, nil
}
