package ratelimit

import "strings"

// Classifier maps request paths to a category.
type Classifier struct {
	LoginPaths    []string
	AdminPrefixes []string
}

func (c Classifier) Classify(path string) Category {
	clean := strings.TrimRight(path, "/")
	if clean == "" {
		clean = "/"
	}
	for _, p := range c.LoginPaths {
		if clean == strings.TrimRight(p, "/") {
			return CategoryLogin
		}
	}
	for _, prefix := range c.AdminPrefixes {
		if HasPathPrefix(clean, prefix) {
			return CategoryAdmin
		}
	}
	return CategoryGeneral
}

// HasPathPrefix matches whole path segments: /api/admin matches /api/admin/x
// but not /api/administrator.
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
