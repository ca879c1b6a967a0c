package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"network/internal/models"
)

func (c *Client) AllPosts(ctx context.Context, page int) (*models.Page, error) {
	return fetchPage(ctx, c, models.PostsKey(page))
}

func (c *Client) FollowingPosts(ctx context.Context, page int) (*models.Page, error) {
	return fetchPage(ctx, c, models.FollowingKey(page))
}

func (c *Client) Profile(ctx context.Context, username string, page int) (*models.Profile, error) {
	key := models.ProfileKey(username, page)
	res := c.Get(ctx, key.Path())
	if err := res.Err(); err != nil {
		return nil, err
	}
	v, err := models.DecodeFor(key, res.Data)
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile), nil
}

func fetchPage(ctx context.Context, c *Client, key models.QueryKey) (*models.Page, error) {
	res := c.Get(ctx, key.Path())
	if err := res.Err(); err != nil {
		return nil, err
	}
	v, err := models.DecodeFor(key, res.Data)
	if err != nil {
		return nil, err
	}
	return v.(*models.Page), nil
}

// FetchKey loads the value cached under key: *models.Page for feed keys,
// *models.Profile for profile keys.
func (c *Client) FetchKey(ctx context.Context, key models.QueryKey) (any, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	res := c.Get(ctx, key.Path())
	if err := res.Err(); err != nil {
		return nil, err
	}
	return models.DecodeFor(key, res.Data)
}

func (c *Client) NewPost(ctx context.Context, text string) (*models.Post, error) {
	var post models.Post
	if err := c.Post(ctx, "/api/new_post", map[string]string{"text": text}).Decode(&post); err != nil {
		return nil, err
	}
	return &post, nil
}

// NewComment creates a comment, or a reply when in.CommentID is set, and
// returns the whole updated post.
func (c *Client) NewComment(ctx context.Context, in models.NewComment) (*models.Post, error) {
	var post models.Post
	if err := c.Post(ctx, "/api/new_comment", in).Decode(&post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) EditPost(ctx context.Context, postID int, text string) (*models.EditedPost, error) {
	body := struct {
		PostID int    `json:"postID"`
		Text   string `json:"text"`
	}{postID, text}

	var edited models.EditedPost
	if err := c.Post(ctx, "/api/edit_post", body).Decode(&edited); err != nil {
		return nil, err
	}
	return &edited, nil
}

// LikePost toggles the current user's like on a post.
func (c *Client) LikePost(ctx context.Context, postID int) (*models.LikeResult, error) {
	var like models.LikeResult
	if err := c.Patch(ctx, "/api/like_post/"+strconv.Itoa(postID), nil).Decode(&like); err != nil {
		return nil, err
	}
	return &like, nil
}

// Follow toggles following username. postID is passed along when the action
// was started from a post.
func (c *Client) Follow(ctx context.Context, username string, postID *int) (*models.FollowResult, error) {
	var body any
	if postID != nil {
		body = map[string]int{"postID": *postID}
	}

	var result models.FollowResult
	if err := c.Post(ctx, "/api/follow/"+url.PathEscape(username), body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProfile sends the profile form. Field validation failures reported by
// the server come back in the result, not as an error.
func (c *Client) UpdateProfile(ctx context.Context, form models.ProfileUpdate, photo *FilePart) (*models.ProfileUpdateResult, error) {
	body := NewMultipart().
		Field("username", form.Username).
		Field("about", form.About).
		Field("email", form.Email)
	if photo != nil {
		part := *photo
		if part.FieldName == "" {
			part.FieldName = "photo"
		}
		body.File(part)
	}

	res := c.Post(ctx, "/api/update_profile", body)
	if !res.OK() {
		if res.Kind == FailureServerResponded {
			if errs, ok := decodeFieldErrors(res.ErrorData); ok {
				return &models.ProfileUpdateResult{Errors: errs}, nil
			}
		}
		return nil, res.Err()
	}

	if errs, ok := decodeFieldErrors(res.Data); ok {
		return &models.ProfileUpdateResult{Errors: errs}, nil
	}

	var profile models.Profile
	if err := json.Unmarshal(res.Data, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &models.ProfileUpdateResult{Profile: &profile}, nil
}

func decodeFieldErrors(data []byte) (models.FieldErrors, bool) {
	var probe struct {
		Errors models.FieldErrors `json:"errors"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || len(probe.Errors) == 0 {
		return nil, false
	}
	return probe.Errors, true
}

// Document fetches a server rendered page, such as the index document that
// carries the bootstrap user info. It also picks up the CSRF cookie.
func (c *Client) Document(ctx context.Context, path string) ([]byte, error) {
	res := c.Get(ctx, path)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Data, nil
}
