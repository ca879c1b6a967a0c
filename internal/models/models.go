package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Comment struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	Text            string    `json:"text"`
	PublicationDate time.Time `json:"publicationDate"`
	Replies         []Comment `json:"replies"`
}

type Post struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	Text            string    `json:"text"`
	PublicationDate time.Time `json:"publicationDate"`
	LastModified    time.Time `json:"lastModified"`
	Edited          bool      `json:"edited"`
	Likes           int       `json:"likes"`
	LikedByUser     bool      `json:"likedByUser"`
	IsOwner         bool      `json:"isOwner"`
	IsFollowing     bool      `json:"isFollowing"`
	Comments        []Comment `json:"comments"`
}

// Page is one page of posts as returned by the paginated endpoints. Page is
// not sent by the server; the client fills it from the query key.
type Page struct {
	Page         int    `json:"page,omitempty"`
	NumPages     int    `json:"numPages"`
	NextPage     *int   `json:"nextPage"`
	PreviousPage *int   `json:"previousPage"`
	Posts        []Post `json:"posts"`
}

type Profile struct {
	Username       string    `json:"username"`
	About          string    `json:"about"`
	Email          string    `json:"email"`
	Photo          string    `json:"photo"`
	DateJoined     time.Time `json:"dateJoined"`
	LastLogin      time.Time `json:"lastLogin"`
	FollowersCount int       `json:"followersCount"`
	FollowingCount int       `json:"followingCount"`
	IsFollowing    bool      `json:"isFollowing"`
	PostsData      Page      `json:"postsData"`
}

type EditedPost struct {
	ID           int       `json:"id"`
	Text         string    `json:"text"`
	Edited       bool      `json:"edited"`
	LastModified time.Time `json:"lastModified"`
}

type LikeResult struct {
	ID          int  `json:"id"`
	Likes       int  `json:"likes"`
	LikedByUser bool `json:"likedByUser"`
}

type FollowResult struct {
	Message     string `json:"message"`
	IsFollowing bool   `json:"isFollowing"`
}

type NewComment struct {
	Text      string `json:"text"`
	PostID    int    `json:"postID"`
	CommentID *int   `json:"commentID,omitempty"`
}

type ProfileUpdate struct {
	Username string `json:"username"`
	About    string `json:"about"`
	Email    string `json:"email"`
}

// ProfileUpdateResult holds either the updated profile or the per-field
// validation errors reported by the server.
type ProfileUpdateResult struct {
	Profile *Profile
	Errors  FieldErrors
}

func (r ProfileUpdateResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Bootstrap is the user info the server embeds in the initial document.
type Bootstrap struct {
	Auth     bool   `json:"auth"`
	Username string `json:"username"`
}

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

// UnmarshalJSON accepts both {"field": "msg"} and the list form
// [{"field": "...", "msg": "..."}] used for schema validation failures.
func (f *FieldErrors) UnmarshalJSON(data []byte) error {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err == nil {
		out := make(FieldErrors, len(asMap))
		for field, raw := range asMap {
			out[field] = flattenMessage(raw)
		}
		*f = out
		return nil
	}

	var asList []struct {
		Field string `json:"field"`
		Msg   string `json:"msg"`
	}
	if err := json.Unmarshal(data, &asList); err != nil {
		return fmt.Errorf("field errors: %w", err)
	}

	out := make(FieldErrors, len(asList))
	for _, item := range asList {
		out[item.Field] = item.Msg
	}
	*f = out
	return nil
}

// flattenMessage turns a message that is either a string or a list of
// strings (model validation) into one string.
func flattenMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return string(raw)
}
