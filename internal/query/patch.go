package query

import (
	"errors"
	"fmt"

	"network/internal/models"
)

var (
	// ErrShapeMismatch means a cached value is not of the type its key's
	// shape promises.
	ErrShapeMismatch = errors.New("cached value does not match key shape")

	ErrPostNotFound = errors.New("post not in cached page")
)

// PatchPosts builds a PatchFunc that rewrites the posts of the page cached
// under a key of the given shape. Feed values keep their posts at the top
// level, profile values under PostsData.
func PatchPosts(shape models.Shape, fn func(posts []models.Post) ([]models.Post, error)) PatchFunc {
	return func(old any) (any, error) {
		switch shape {
		case models.ShapeProfile:
			profile, ok := old.(*models.Profile)
			if !ok {
				return nil, fmt.Errorf("%w: want profile, have %T", ErrShapeMismatch, old)
			}
			next := profile.Clone()
			posts, err := fn(next.PostsData.Posts)
			if err != nil {
				return nil, err
			}
			next.PostsData.Posts = posts
			return &next, nil
		default:
			page, ok := old.(*models.Page)
			if !ok {
				return nil, fmt.Errorf("%w: want page, have %T", ErrShapeMismatch, old)
			}
			next := page.Clone()
			posts, err := fn(next.Posts)
			if err != nil {
				return nil, err
			}
			next.Posts = posts
			return &next, nil
		}
	}
}

// UpdatePost applies update to the post with the given id. posts must be a
// copy owned by the caller, as handed out by PatchPosts.
func UpdatePost(id int, update func(*models.Post)) func([]models.Post) ([]models.Post, error) {
	return func(posts []models.Post) ([]models.Post, error) {
		for i := range posts {
			if posts[i].ID == id {
				update(&posts[i])
				return posts, nil
			}
		}
		return nil, fmt.Errorf("%w: %d", ErrPostNotFound, id)
	}
}

// ReplacePost swaps in post for the cached post with the same id.
func ReplacePost(post models.Post) func([]models.Post) ([]models.Post, error) {
	return UpdatePost(post.ID, func(p *models.Post) {
		*p = post
	})
}
