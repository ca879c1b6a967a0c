package service

import (
	"context"
	"fmt"

	"network/internal/models"
	"network/internal/query"
)

type PostService interface {
	// NewPost creates a post and returns once key has been refetched, so a
	// compose form can be cleared with the new post already listed.
	NewPost(ctx context.Context, key models.QueryKey, text string) (*models.Post, error)
	EditPost(ctx context.Context, key models.QueryKey, postID int, text string) (*models.EditedPost, error)
	Like(ctx context.Context, key models.QueryKey, postID int) (*models.LikeResult, error)
}

type postService struct {
	*base
}

func newPostService(b *base) PostService {
	return &postService{base: b}
}

func (s *postService) NewPost(ctx context.Context, key models.QueryKey, text string) (*models.Post, error) {
	text, err := s.validation.checkText(text)
	if err != nil {
		return nil, err
	}

	post, err := s.api.NewPost(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("new post: %w", err)
	}

	s.refresh(ctx, key)
	return post, nil
}

func (s *postService) EditPost(ctx context.Context, key models.QueryKey, postID int, text string) (*models.EditedPost, error) {
	text, err := s.validation.checkText(text)
	if err != nil {
		return nil, err
	}

	edited, err := s.api.EditPost(ctx, postID, text)
	if err != nil {
		return nil, fmt.Errorf("edit post %d: %w", postID, err)
	}

	id := edited.ID
	if id == 0 {
		id = postID
	}
	s.patch(ctx, key, query.UpdatePost(id, func(p *models.Post) {
		p.Text = edited.Text
		p.Edited = edited.Edited
		p.LastModified = edited.LastModified
	}))
	return edited, nil
}

func (s *postService) Like(ctx context.Context, key models.QueryKey, postID int) (*models.LikeResult, error) {
	res, err := s.api.LikePost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("like post %d: %w", postID, err)
	}

	s.patch(ctx, key, query.UpdatePost(postID, func(p *models.Post) {
		p.Likes = res.Likes
		p.LikedByUser = res.LikedByUser
	}))
	return res, nil
}
