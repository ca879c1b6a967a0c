package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"network/cmd/app"
	"network/internal/api"
	"network/internal/config"
	"network/internal/models"
	"network/internal/session"
	"network/internal/view"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI(out io.Writer) *cli.App {
	viewFlag := &cli.StringFlag{
		Name:  "view",
		Value: "/",
		Usage: "path of the view to update and show afterwards, e.g. /profile/bob/2",
	}
	postFlag := &cli.IntFlag{Name: "post", Usage: "post id", Required: true}
	pageFlag := &cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 1, Usage: "page number"}

	return &cli.App{
		Name:      "network",
		Usage:     "browse and post to the network from a terminal",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", EnvVars: []string{"NETWORK_CONFIG_FILE"}},
			&cli.StringFlag{Name: "base-url", Usage: "backend base URL", EnvVars: []string{"NETWORK_BASE_URL"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			{
				Name:  "feed",
				Usage: "show all posts",
				Flags: []cli.Flag{pageFlag},
				Action: func(c *cli.Context) error {
					return show(c, "/"+strconv.Itoa(c.Int("page")))
				},
			},
			{
				Name:  "following",
				Usage: "show posts of followed users",
				Flags: []cli.Flag{pageFlag},
				Action: func(c *cli.Context) error {
					return show(c, "/following/"+strconv.Itoa(c.Int("page")))
				},
			},
			{
				Name:      "profile",
				Usage:     "show a profile",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{pageFlag},
				Action: func(c *cli.Context) error {
					username := c.Args().First()
					if username == "" {
						return cli.Exit("profile needs a username", 2)
					}
					return show(c, "/profile/"+username+"/"+strconv.Itoa(c.Int("page")))
				},
			},
			{
				Name:      "view",
				Usage:     "show the view at a path",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					return show(c, c.Args().First())
				},
			},
			{
				Name:      "post",
				Usage:     "create a post",
				ArgsUsage: "<text>",
				Action: func(c *cli.Context) error {
					return mutate(c, "/", func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.Post.NewPost(ctx, sess.Key, text(c))
						return err
					})
				},
			},
			{
				Name:      "comment",
				Usage:     "comment on a post",
				ArgsUsage: "<text>",
				Flags:     []cli.Flag{postFlag, viewFlag},
				Action: func(c *cli.Context) error {
					return mutate(c, c.String("view"), func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.Comment.NewComment(ctx, sess.Key, c.Int("post"), text(c))
						return err
					})
				},
			},
			{
				Name:      "reply",
				Usage:     "reply to a comment",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					postFlag,
					&cli.IntFlag{Name: "comment", Usage: "comment id", Required: true},
					viewFlag,
				},
				Action: func(c *cli.Context) error {
					return mutate(c, c.String("view"), func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.Comment.NewReply(ctx, sess.Key, c.Int("post"), c.Int("comment"), text(c))
						return err
					})
				},
			},
			{
				Name:  "like",
				Usage: "like or unlike a post",
				Flags: []cli.Flag{postFlag, viewFlag},
				Action: func(c *cli.Context) error {
					return mutate(c, c.String("view"), func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.Post.Like(ctx, sess.Key, c.Int("post"))
						return err
					})
				},
			},
			{
				Name:      "edit",
				Usage:     "edit one of your posts",
				ArgsUsage: "<text>",
				Flags:     []cli.Flag{postFlag, viewFlag},
				Action: func(c *cli.Context) error {
					return mutate(c, c.String("view"), func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.Post.EditPost(ctx, sess.Key, c.Int("post"), text(c))
						return err
					})
				},
			},
			{
				Name:      "follow",
				Usage:     "follow or unfollow a user",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{viewFlag},
				Action: func(c *cli.Context) error {
					username := c.Args().First()
					viewPath := c.String("view")
					if !c.IsSet("view") {
						viewPath = "/profile/" + username
					}
					return mutate(c, viewPath, func(ctx context.Context, a *app.App, sess *session.Context) error {
						_, err := a.Services.User.Follow(ctx, sess.Key, username, nil)
						return err
					})
				},
			},
			{
				Name:  "update-profile",
				Usage: "update your profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "about"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "photo", Usage: "local path or minio://bucket/object"},
				},
				Action: updateProfile,
			},
		},
	}
}

func text(c *cli.Context) string {
	return strings.Join(c.Args().Slice(), " ")
}

func setup(c *cli.Context) (*app.App, error) {
	// --config falls back to NETWORK_CONFIG_FILE through the flag's EnvVars.
	cfg, err := config.LoadConfigFile(c.String("config"))
	if err != nil {
		return nil, err
	}
	if u := c.String("base-url"); u != "" {
		cfg.API.BaseURL = u
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger := app.NewLogger(cfg.Log, c.App.ErrWriter)
	return app.New(c.Context, cfg, logger)
}

func show(c *cli.Context, path string) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.Session(c.Context, path)
	if err != nil {
		return err
	}
	if err := sess.RequireAuth(); err != nil {
		return cli.Exit("log in first: set NETWORK_SESSION_ID", 1)
	}
	return render(c.Context, c.App.Writer, a, sess)
}

// mutate loads the view at viewPath, so patches have a page to apply to,
// runs fn and renders the view again.
func mutate(c *cli.Context, viewPath string, fn func(ctx context.Context, a *app.App, sess *session.Context) error) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.Session(c.Context, viewPath)
	if err != nil {
		return err
	}
	if !sess.Authenticated {
		return cli.Exit("log in first: set NETWORK_SESSION_ID", 1)
	}

	// Patches must land on the server's current page, not on a hydrated
	// snapshot.
	if _, err := a.Cache.Fetch(c.Context, sess.Key); err != nil {
		a.Logger.Warn("could not load view before update", "key", sess.Key.String(), "error", err)
	}

	if err := fn(c.Context, a, sess); err != nil {
		return err
	}
	return render(c.Context, c.App.Writer, a, sess)
}

func updateProfile(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.Session(c.Context, "/")
	if err != nil {
		return err
	}
	if !sess.Authenticated {
		return cli.Exit("log in first: set NETWORK_SESSION_ID", 1)
	}
	// The profile being edited is the logged-in user's, whatever the new
	// username is.
	sess = sess.Navigate(models.ProfileKey(sess.Username, 1))

	form := models.ProfileUpdate{
		Username: c.String("username"),
		About:    c.String("about"),
		Email:    c.String("email"),
	}

	var photo *api.FilePart
	if ref := c.String("photo"); ref != "" {
		part, closePhoto, err := a.OpenPhoto(c.Context, ref)
		if err != nil {
			return err
		}
		defer closePhoto()
		photo = part
	}

	res, formOpen, err := a.Services.User.UpdateProfile(c.Context, sess.Key, form, photo)
	if err != nil {
		return err
	}
	if formOpen {
		fields := make([]string, 0, len(res.Errors))
		for field := range res.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(c.App.Writer, "%s: %s\n", field, res.Errors[field])
		}
		return cli.Exit("profile not updated", 1)
	}

	if res.Profile != nil && res.Profile.Username != sess.Username {
		sess = sess.Navigate(models.ProfileKey(res.Profile.Username, 1))
	}
	return render(c.Context, c.App.Writer, a, sess)
}

func render(ctx context.Context, w io.Writer, a *app.App, sess *session.Context) error {
	obs := a.Cache.Observe(sess.Key)
	res, err := obs.Load(ctx, sess.Key)
	if err != nil && errors.Is(err, context.Canceled) {
		return err
	}

	r := &view.Renderer{LoggedUser: sess.Username}
	switch sess.Key.Kind {
	case models.KindProfile:
		err = r.Profile(w, res, sess.Page())
	case models.KindFollowing:
		err = r.Feed(w, "Following Posts", res, sess.Page())
	default:
		err = r.Feed(w, "All Posts", res, sess.Page())
	}
	if err != nil {
		return err
	}
	return view.Toast(w, a.Toast.State())
}
