package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network/internal/models"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestClient_RequestClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/all_posts/1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"numPages":3,"nextPage":2,"previousPage":null,"posts":[{"id":1,"username":"ann","text":"hello"}]}`))
		case "/api/all_posts/9":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":"The requested object does not exist."}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		res := client.Get(ctx, "/api/all_posts/1")
		assert.True(t, res.OK())
		assert.Equal(t, FailureNone, res.Kind)
		assert.Empty(t, res.ErrorMessage)

		page, err := client.AllPosts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 3, page.NumPages)
		require.NotNil(t, page.NextPage)
		assert.Equal(t, 2, *page.NextPage)
		assert.Nil(t, page.PreviousPage)
		require.Len(t, page.Posts, 1)
		assert.Equal(t, "ann", page.Posts[0].Username)
	})

	t.Run("server responded with error", func(t *testing.T) {
		res := client.Get(ctx, "/api/all_posts/9")
		assert.False(t, res.OK())
		assert.Equal(t, FailureServerResponded, res.Kind)
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Contains(t, res.ErrorMessage, "Server responded")
		assert.JSONEq(t, `{"errors":"The requested object does not exist."}`, string(res.ErrorData))

		_, err := client.AllPosts(ctx, 9)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrServerResponded))

		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("request construction failed", func(t *testing.T) {
		res := client.Get(ctx, "/api/%zz")
		assert.Equal(t, FailureRequest, res.Kind)
		assert.Contains(t, res.ErrorMessage, "Request error")
		assert.True(t, errors.Is(res.Err(), ErrRequest))
	})

	t.Run("unencodable body", func(t *testing.T) {
		res := client.Post(ctx, "/api/new_post", map[string]any{"text": make(chan int)})
		assert.Equal(t, FailureRequest, res.Kind)
	})
}

func TestClient_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := newTestClient(t, srv)
	srv.Close()

	res := client.Get(context.Background(), "/api/all_posts/1")
	assert.Equal(t, FailureNoResponse, res.Kind)
	assert.Contains(t, res.ErrorMessage, "No response received from the server")
	assert.Nil(t, res.ErrorData)
	assert.True(t, errors.Is(res.Err(), ErrNoResponse))
}

func TestClient_NilContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"likes":1,"likedByUser":true}`))
	}))
	defer srv.Close()
	client := newTestClient(t, srv)

	var res Result
	require.NotPanics(t, func() { res = client.Request(nil, http.MethodGet, "/api/like_post/1", nil) })
	assert.True(t, res.OK())
	assert.JSONEq(t, `{"likes":1,"likedByUser":true}`, string(res.Data))
}

func TestClient_CSRFHeaderFromCookie(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "from-server", Path: "/"})
			w.Write([]byte(`<html></html>`))
			return
		}
		mu.Lock()
		got = append(got, r.Header.Get("X-CSRFToken"))
		mu.Unlock()
		w.Write([]byte(`{"id":4,"text":"hello there"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	ctx := context.Background()

	_, err := client.Document(ctx, "/")
	require.NoError(t, err)

	token, ok := client.Cookie("csrftoken")
	require.True(t, ok)
	assert.Equal(t, "from-server", token)

	_, err = client.NewPost(ctx, "hello there")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"from-server"}, got)
}

func TestClient_AbortIsPerClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	defer close(release)

	first := newTestClient(t, srv)
	second := first.Clone()

	done := make(chan Result, 1)
	go func() {
		done <- first.Get(context.Background(), "/slow")
	}()

	time.Sleep(50 * time.Millisecond)
	first.Abort()

	select {
	case res := <-done:
		assert.Equal(t, FailureNoResponse, res.Kind)
		assert.True(t, IsCanceled(res.Err()))
	case <-time.After(2 * time.Second):
		t.Fatal("aborted request did not return")
	}

	res := second.Get(context.Background(), "/fast")
	assert.True(t, res.OK(), res.ErrorMessage)

	after := first.Get(context.Background(), "/fast")
	assert.Equal(t, FailureRequest, after.Kind)
}

func TestClient_LikeAndFollow(t *testing.T) {
	var followBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/api/like_post/7":
			w.Write([]byte(`{"id":7,"likes":3,"likedByUser":true}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/follow/bob":
			json.NewDecoder(r.Body).Decode(&followBody)
			w.Write([]byte(`{"message":"You are now following bob","isFollowing":true}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	ctx := context.Background()

	like, err := client.LikePost(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, like.Likes)
	assert.True(t, like.LikedByUser)

	postID := 7
	follow, err := client.Follow(ctx, "bob", &postID)
	require.NoError(t, err)
	assert.Equal(t, "You are now following bob", follow.Message)
	assert.True(t, follow.IsFollowing)
	assert.Equal(t, map[string]int{"postID": 7}, followBody)
}

func TestClient_UpdateProfile(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		response       string
		expectedErrors models.FieldErrors
		expectedName   string
	}{
		{
			name:         "updated",
			status:       http.StatusOK,
			response:     `{"username":"ann2","email":"a@b.c","photo":"p.png","about":"hi"}`,
			expectedName: "ann2",
		},
		{
			name:           "field errors in a 200 body",
			status:         http.StatusOK,
			response:       `{"errors":{"username":"taken"}}`,
			expectedErrors: models.FieldErrors{"username": "taken"},
		},
		{
			name:           "schema errors in a 400 body",
			status:         http.StatusBadRequest,
			response:       `{"errors":[{"field":"username","msg":"too short"}]}`,
			expectedErrors: models.FieldErrors{"username": "too short"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields map[string]string
			var photo string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, r.ParseMultipartForm(1<<20))
				fields = map[string]string{
					"username": r.FormValue("username"),
					"about":    r.FormValue("about"),
					"email":    r.FormValue("email"),
				}
				if f, h, err := r.FormFile("photo"); err == nil {
					data, _ := io.ReadAll(f)
					photo = h.Filename + ":" + h.Header.Get("Content-Type") + ":" + string(data)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := newTestClient(t, srv)
			form := models.ProfileUpdate{Username: "ann2", About: "hi", Email: "a@b.c"}
			result, err := client.UpdateProfile(context.Background(), form, &FilePart{
				FileName:    "me.png",
				ContentType: "image/png",
				Reader:      strings.NewReader("png-bytes"),
			})
			require.NoError(t, err)

			assert.Equal(t, map[string]string{"username": "ann2", "about": "hi", "email": "a@b.c"}, fields)
			assert.Equal(t, "me.png:image/png:png-bytes", photo)

			if tt.expectedErrors != nil {
				assert.True(t, result.HasErrors())
				assert.Equal(t, tt.expectedErrors, result.Errors)
				assert.Nil(t, result.Profile)
				return
			}
			require.NotNil(t, result.Profile)
			assert.Equal(t, tt.expectedName, result.Profile.Username)
		})
	}
}

func TestClient_UpdateProfileServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.UpdateProfile(context.Background(), models.ProfileUpdate{Username: "ann"}, nil)
	assert.True(t, errors.Is(err, ErrServerResponded))
}
