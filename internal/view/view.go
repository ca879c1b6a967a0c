// Package view renders feeds, profiles and comment trees as plain text for
// the terminal client.
package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"network/internal/models"
	"network/internal/pagination"
	"network/internal/query"
	"network/internal/toast"
)

const (
	fetchingMarker = "~ updating ~"
	loadingMarker  = "loading..."
	noPosts        = "No posts to show"
)

type Renderer struct {
	// Now is the reference for relative dates. Nil means time.Now.
	Now func() time.Time
	// LoggedUser hides the follow hint on the user's own posts and profile.
	LoggedUser string
}

func (r *Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Renderer) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, r.now(), "ago", "from now")
}

// printer keeps the first write error so rendering code can ignore them.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.printf("%s\n", s)
}

// Feed renders a page of posts under title. current is the page the view
// asked for, which differs from the data while previous data is shown.
func (r *Renderer) Feed(w io.Writer, title string, res query.Result, current int) error {
	p := &printer{w: w}
	p.line(title)
	p.line(strings.Repeat("=", utf8.RuneCountInString(title)))

	if !res.HasData() {
		r.status(p, res)
		return p.err
	}

	page, ok := res.Page()
	if !ok {
		return fmt.Errorf("%w: feed needs a page, have %T", query.ErrShapeMismatch, res.Data)
	}
	r.page(p, *page, res, current)
	return p.err
}

// Profile renders a profile header followed by the owner's posts.
func (r *Renderer) Profile(w io.Writer, res query.Result, current int) error {
	p := &printer{w: w}

	if !res.HasData() {
		r.status(p, res)
		return p.err
	}

	profile, ok := res.Profile()
	if !ok {
		return fmt.Errorf("%w: profile view needs a profile, have %T", query.ErrShapeMismatch, res.Data)
	}

	title := capitalize(profile.Username) + "'s profile"
	p.line(title)
	p.line(strings.Repeat("=", utf8.RuneCountInString(title)))

	if profile.Username != r.LoggedUser && r.LoggedUser != "" {
		if profile.IsFollowing {
			p.line("[following]  (unfollow with: follow " + profile.Username + ")")
		} else {
			p.line("[not following]  (follow with: follow " + profile.Username + ")")
		}
	}

	photo := profile.Photo
	if photo == "" {
		photo = "(no photo)"
	}
	p.printf("Photo:     %s\n", photo)
	p.printf("Joined:    %s\n", r.ago(profile.DateJoined))
	p.printf("Last seen: %s\n", r.ago(profile.LastLogin))
	p.printf("About me:  %s\n", profile.About)
	p.printf("E-mail:    %s\n", profile.Email)
	p.printf("Followers: %s\n", humanize.Comma(int64(profile.FollowersCount)))
	p.printf("Following: %s\n", humanize.Comma(int64(profile.FollowingCount)))
	p.line("")

	r.page(p, profile.PostsData, res, current)
	return p.err
}

// status covers a result without data: an error in place of the feed, or
// a loading line.
func (r *Renderer) status(p *printer, res query.Result) {
	switch {
	case res.Err != nil:
		p.printf("Error: %s\n", res.Err)
	case res.Fetching:
		p.line(loadingMarker)
	default:
		p.line(noPosts)
	}
}

func (r *Renderer) page(p *printer, page models.Page, res query.Result, current int) {
	if len(page.Posts) == 0 {
		p.line(noPosts)
		return
	}

	p.line(Controls(pagination.NewControls(page, current, res.IsPreviousData)))
	if res.Fetching {
		p.line(fetchingMarker)
	}
	if res.Err != nil {
		// Data is still shown; the refetch that failed is reported once.
		p.printf("Error: %s\n", res.Err)
	}
	p.line("")

	for i, post := range page.Posts {
		if i > 0 {
			p.line("")
		}
		r.post(p, post)
	}
}

func (r *Renderer) post(p *printer, post models.Post) {
	header := fmt.Sprintf("#%d @%s · %s", post.ID, post.Username, r.ago(post.PublicationDate))
	if post.Edited {
		header += " (edited " + r.ago(post.LastModified) + ")"
	}
	if post.IsOwner {
		header += " [yours]"
	} else if post.IsFollowing {
		header += " [following]"
	}
	p.line(header)
	p.line("  " + post.Text)

	likes := english.Plural(post.Likes, "like", "")
	if post.LikedByUser {
		likes += ", including you"
	}
	p.printf("  %s · %s\n", likes, english.Plural(models.CountComments(post.Comments), "comment", ""))

	for _, c := range post.Comments {
		r.comment(p, c, 1)
	}
}

// Comment renders c and its replies, each level indented further.
func (r *Renderer) Comment(w io.Writer, c models.Comment, depth int) error {
	p := &printer{w: w}
	r.comment(p, c, depth)
	return p.err
}

func (r *Renderer) comment(p *printer, c models.Comment, depth int) {
	indent := strings.Repeat("    ", depth)
	p.printf("%s└ @%s · %s: %s\n", indent, c.Username, r.ago(c.PublicationDate), c.Text)
	for _, reply := range c.Replies {
		r.comment(p, reply, depth+1)
	}
}

// Controls renders page controls as one line, e.g. "‹ 3 4 [5] 6 7 ›".
// Disabled arrows are replaced by a dot.
func Controls(c pagination.Controls) string {
	parts := make([]string, 0, len(c.Pages)+2)

	if c.PrevDisabled {
		parts = append(parts, "·")
	} else {
		parts = append(parts, "‹"+strconv.Itoa(c.Prev))
	}
	for _, n := range c.Pages {
		if n == c.Current {
			parts = append(parts, "["+strconv.Itoa(n)+"]")
		} else {
			parts = append(parts, strconv.Itoa(n))
		}
	}
	if c.NextDisabled {
		parts = append(parts, "·")
	} else {
		parts = append(parts, strconv.Itoa(c.Next)+"›")
	}
	return strings.Join(parts, " ")
}

// Toast renders the toast line, or nothing when it is hidden.
func Toast(w io.Writer, s toast.State) error {
	if !s.Visible {
		return nil
	}
	lead := s.Lead()
	if lead != "" {
		lead += " "
	}
	_, err := fmt.Fprintf(w, ">> %s*%s*\n", lead, s.Subject())
	return err
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
