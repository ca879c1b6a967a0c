package models

// Walk visits every comment in the tree depth first. depth is 0 for top level
// comments. Returning false from fn stops the walk.
func Walk(comments []Comment, fn func(c Comment, depth int) bool) {
	walk(comments, 0, fn)
}

func walk(comments []Comment, depth int, fn func(Comment, int) bool) bool {
	for _, c := range comments {
		if !fn(c, depth) {
			return false
		}
		if !walk(c.Replies, depth+1, fn) {
			return false
		}
	}
	return true
}

// CountComments returns the number of comments including all nested replies.
func CountComments(comments []Comment) int {
	n := 0
	Walk(comments, func(Comment, int) bool {
		n++
		return true
	})
	return n
}

// FindComment looks up a comment anywhere in the tree.
func FindComment(comments []Comment, id int) (Comment, bool) {
	var found Comment
	ok := false
	Walk(comments, func(c Comment, _ int) bool {
		if c.ID == id {
			found, ok = c, true
			return false
		}
		return true
	})
	return found, ok
}

// Clone returns a copy of the page whose post slice can be modified without
// touching the original. Comment trees are shared, they are only ever
// replaced as a whole.
func (p Page) Clone() Page {
	out := p
	out.Posts = append([]Post(nil), p.Posts...)
	return out
}

// Clone returns a copy of the profile with an independent posts page.
func (p Profile) Clone() Profile {
	out := p
	out.PostsData = p.PostsData.Clone()
	return out
}

// PostIndex returns the index of the post with the given id, or -1.
func (p Page) PostIndex(id int) int {
	for i := range p.Posts {
		if p.Posts[i].ID == id {
			return i
		}
	}
	return -1
}
