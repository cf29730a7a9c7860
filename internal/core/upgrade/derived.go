package upgrade

import (
	"net/url"
	"strings"
)

// IsDerivedURL reports whether requested looks like the user editing or
// retrying the tab's current URL rather than entering a new address.
func IsDerivedURL(current, requested string) bool {
	if current == requested {
		return true
	}
	if !hasWebScheme(current) {
		return false
	}

	cur, err := url.Parse(current)
	if err != nil {
		return false
	}
	req, err := url.Parse(requested)
	if err != nil {
		return false
	}

	// Never fall back to plaintext from an encrypted page.
	if strings.EqualFold(cur.Scheme, "https") {
		return false
	}
	if cur.Hostname() == req.Hostname() {
		return true
	}

	curPath, curQuery, curFragment := locationParts(cur)
	reqPath, reqQuery, reqFragment := locationParts(req)
	nonTrivial := len(curPath) > 1 || len(curQuery) > 2 || len(curFragment) > 2
	return nonTrivial &&
		curPath == reqPath &&
		curQuery == reqQuery &&
		curFragment == reqFragment
}

func hasWebScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http:") || strings.HasPrefix(lower, "https:")
}

// locationParts returns path, query and fragment the way a browser location
// reports them: path at least "/", query and fragment with their leading
// delimiter or empty.
func locationParts(u *url.URL) (path, query, fragment string) {
	path = u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		fragment = "#" + u.EscapedFragment()
	}
	return path, query, fragment
}
