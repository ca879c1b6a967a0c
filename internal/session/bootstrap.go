package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"network/internal/models"
)

// BootstrapElementID is the id of the script element holding the user info
// JSON in the server-rendered document.
const BootstrapElementID = "userInfo"

var ErrNoBootstrap = errors.New("document has no user info")

// maxDocumentSize bounds how much of a document is parsed.
const maxDocumentSize = 2 << 20

// ParseBootstrap extracts the embedded user info from an HTML document.
func ParseBootstrap(r io.Reader) (models.Bootstrap, error) {
	doc, err := html.Parse(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return models.Bootstrap{}, fmt.Errorf("parse document: %w", err)
	}

	script := findByID(doc, BootstrapElementID)
	if script == nil {
		return models.Bootstrap{}, ErrNoBootstrap
	}

	var text strings.Builder
	for c := script.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}

	var boot models.Bootstrap
	if err := json.Unmarshal([]byte(text.String()), &boot); err != nil {
		return models.Bootstrap{}, fmt.Errorf("decode user info: %w", err)
	}
	return boot, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && getAttr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
