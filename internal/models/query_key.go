package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type QueryKind string

const (
	KindPosts     QueryKind = "posts"
	KindFollowing QueryKind = "following"
	KindProfile   QueryKind = "profile"
)

// Shape tells which collection holds the posts of a cached value.
type Shape int

const (
	// ShapeFeed values are *Page, posts at the top level.
	ShapeFeed Shape = iota
	// ShapeProfile values are *Profile, posts under PostsData.
	ShapeProfile
)

func (s Shape) String() string {
	if s == ShapeProfile {
		return "profile"
	}
	return "feed"
}

var ErrInvalidQueryKey = errors.New("invalid query key")

// QueryKey addresses one cached server response. Keys are comparable and two
// keys are the same slot when all fields are equal.
type QueryKey struct {
	Kind     QueryKind
	Username string
	Page     int
}

func PostsKey(page int) QueryKey {
	return QueryKey{Kind: KindPosts, Page: normalizePage(page)}
}

func FollowingKey(page int) QueryKey {
	return QueryKey{Kind: KindFollowing, Page: normalizePage(page)}
}

func ProfileKey(username string, page int) QueryKey {
	return QueryKey{Kind: KindProfile, Username: username, Page: normalizePage(page)}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func (k QueryKey) Shape() Shape {
	if k.Kind == KindProfile {
		return ShapeProfile
	}
	return ShapeFeed
}

func (k QueryKey) WithPage(page int) QueryKey {
	k.Page = normalizePage(page)
	return k
}

func (k QueryKey) Validate() error {
	switch k.Kind {
	case KindPosts, KindFollowing:
		if k.Username != "" {
			return fmt.Errorf("%w: %s key carries a username", ErrInvalidQueryKey, k.Kind)
		}
	case KindProfile:
		if k.Username == "" {
			return fmt.Errorf("%w: profile key without username", ErrInvalidQueryKey)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidQueryKey, k.Kind)
	}
	if k.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidQueryKey, k.Page)
	}
	return nil
}

// String renders the key as "posts/2", "following/1" or "profile/bob/3".
func (k QueryKey) String() string {
	if k.Kind == KindProfile {
		return fmt.Sprintf("%s/%s/%d", k.Kind, k.Username, k.Page)
	}
	return fmt.Sprintf("%s/%d", k.Kind, k.Page)
}

// Path is the API path serving this key.
func (k QueryKey) Path() string {
	switch k.Kind {
	case KindFollowing:
		return fmt.Sprintf("/api/following_posts/%d", k.Page)
	case KindProfile:
		return fmt.Sprintf("/api/profile/%s/%d", url.PathEscape(k.Username), k.Page)
	default:
		return fmt.Sprintf("/api/all_posts/%d", k.Page)
	}
}

// ParseQueryKey is the inverse of QueryKey.String.
func ParseQueryKey(s string) (QueryKey, error) {
	parts := strings.Split(s, "/")
	var key QueryKey
	switch {
	case len(parts) == 2 && (parts[0] == string(KindPosts) || parts[0] == string(KindFollowing)):
		key.Kind = QueryKind(parts[0])
	case len(parts) == 3 && parts[0] == string(KindProfile):
		key.Kind = KindProfile
		key.Username = parts[1]
	default:
		return QueryKey{}, fmt.Errorf("%w: %q", ErrInvalidQueryKey, s)
	}

	page, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return QueryKey{}, fmt.Errorf("%w: page in %q", ErrInvalidQueryKey, s)
	}
	key.Page = page

	if err := key.Validate(); err != nil {
		return QueryKey{}, err
	}
	return key, nil
}

// DecodeFor decodes a JSON payload into the value type cached under key:
// *Page for feed keys and *Profile for profile keys.
func DecodeFor(key QueryKey, data []byte) (any, error) {
	switch key.Shape() {
	case ShapeProfile:
		var profile Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", key, err)
		}
		profile.PostsData.Page = key.Page
		return &profile, nil
	default:
		var page Page
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode page %s: %w", key, err)
		}
		page.Page = key.Page
		return &page, nil
	}
}
