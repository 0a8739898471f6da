// Package links builds and parses the share and edit links. Tokens and the
// encryption key live only in the URL fragment, which browsers and HTTP
// clients never send to a server.
package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/timevault/internal/cryptox"
)

var ErrMalformedLink = errors.New("malformed link")

// Share is the parsed content of a share link.
type Share struct {
	DecryptToken string
	Key          string
}

// ShareLink returns <base>/view#d=<decrypt token>&k=<key hex>.
func ShareLink(base, decryptToken, keyHex string) string {
	f := url.Values{}
	f.Set("d", decryptToken)
	f.Set("k", keyHex)
	return strings.TrimRight(base, "/") + "/view#" + f.Encode()
}

// EditLink returns <base>/edit#e=<edit token>.
func EditLink(base, editToken string) string {
	f := url.Values{}
	f.Set("e", editToken)
	return strings.TrimRight(base, "/") + "/edit#" + f.Encode()
}

func fragment(link string) (url.Values, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	q := u.Query()
	for _, k := range []string{"d", "k", "e"} {
		if q.Has(k) {
			return nil, fmt.Errorf("%w: secrets must be in the fragment, not the query", ErrMalformedLink)
		}
	}
	f, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	return f, nil
}

// ParseShare extracts the decrypt token and key from a share link.
func ParseShare(link string) (*Share, error) {
	f, err := fragment(link)
	if err != nil {
		return nil, err
	}
	s := &Share{DecryptToken: f.Get("d"), Key: f.Get("k")}
	if !cryptox.ValidTokenFormat(s.DecryptToken) {
		return nil, fmt.Errorf("%w: missing or invalid decrypt token", ErrMalformedLink)
	}
	if !cryptox.ValidTokenFormat(s.Key) {
		return nil, fmt.Errorf("%w: missing or invalid key", ErrMalformedLink)
	}
	return s, nil
}

// ParseEdit extracts the edit token from an edit link.
func ParseEdit(link string) (string, error) {
	f, err := fragment(link)
	if err != nil {
		return "", err
	}
	token := f.Get("e")
	if !cryptox.ValidTokenFormat(token) {
		return "", fmt.Errorf("%w: missing or invalid edit token", ErrMalformedLink)
	}
	return token, nil
}
