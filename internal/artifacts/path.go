package artifacts

import "strings"

const pathPrefix = "/artifacts/"

// Path is where the HTTP surface serves an artifact.
func Path(id string) string {
	return pathPrefix + strings.TrimSpace(id)
}

// ParsePath extracts the ID from a Path.
func ParsePath(p string) (id string, ok bool) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, pathPrefix) {
		return "", false
	}
	id = strings.TrimSpace(strings.TrimPrefix(p, pathPrefix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
