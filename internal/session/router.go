package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"network/internal/models"
)

var ErrUnknownRoute = errors.New("no view for path")

// Router maps browser paths to the query key of the view they show.
//
//	/                          posts, page 1
//	/{page}                    posts
//	/following[/{page}]        following
//	/profile/{username}[/{page}] profile
type Router struct {
	mux *mux.Router
}

func NewRouter() *Router {
	r := mux.NewRouter()

	r.Path("/").Name(string(models.KindPosts) + "-index")
	r.Path("/{page:[0-9]+}").Name(string(models.KindPosts))
	r.Path("/following").Name(string(models.KindFollowing) + "-index")
	r.Path("/following/{page:[0-9]+}").Name(string(models.KindFollowing))
	r.Path("/profile/{username}").Name(string(models.KindProfile) + "-index")
	r.Path("/profile/{username}/{page:[0-9]+}").Name(string(models.KindProfile))

	return &Router{mux: r}
}

// Resolve returns the query key for path. A trailing slash is ignored and a
// missing page means page 1.
func (r *Router) Resolve(path string) (models.QueryKey, error) {
	u, err := url.Parse(path)
	if err != nil {
		return models.QueryKey{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	req := &http.Request{Method: http.MethodGet, URL: u}
	var match mux.RouteMatch
	if !r.mux.Match(req, &match) || match.Route == nil {
		return models.QueryKey{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
	}

	page := 1
	if raw, ok := match.Vars["page"]; ok {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return models.QueryKey{}, fmt.Errorf("%w: page %q", ErrUnknownRoute, raw)
		}
	}

	kind, _ := strings.CutSuffix(match.Route.GetName(), "-index")
	switch models.QueryKind(kind) {
	case models.KindPosts:
		return models.PostsKey(page), nil
	case models.KindFollowing:
		return models.FollowingKey(page), nil
	case models.KindProfile:
		return models.ProfileKey(match.Vars["username"], page), nil
	}
	return models.QueryKey{}, fmt.Errorf("%w: %q", ErrUnknownRoute, path)
}

// URL is the browser path showing key.
func (r *Router) URL(key models.QueryKey) (string, error) {
	route := r.mux.Get(string(key.Kind))
	if route == nil {
		return "", fmt.Errorf("%w: kind %q", models.ErrInvalidQueryKey, key.Kind)
	}

	pairs := []string{"page", strconv.Itoa(key.Page)}
	if key.Kind == models.KindProfile {
		pairs = append(pairs, "username", key.Username)
	}

	u, err := route.URLPath(pairs...)
	if err != nil {
		return "", fmt.Errorf("build url for %s: %w", key, err)
	}
	return u.String(), nil
}
