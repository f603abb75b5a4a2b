package handlers

import (
	"path"
	"strings"
)

// Extensions maps handler names to the file extensions they claim.
// Hashed assets are configured separately; see DefaultHashExtensions.
var Extensions = map[string][]string{
	"html": {".html", ".htm"},
	"css":  {".css"},
	"js":   {".js", ".mjs"},
}

// DefaultHashExtensions are asset extensions published with a .hash sibling
// so pages and stylesheets can cache-bust them.
var DefaultHashExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
}

// HashSuffix is appended to an output path to name its hash file.
const HashSuffix = ".hash"

// ExtensionSet builds a lookup set from extension lists, lowercased.
func ExtensionSet(lists ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, ext := range list {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			set[ext] = true
		}
	}
	return set
}

// byExtension returns a predicate matching paths whose extension is in set.
func byExtension(set map[string]bool) func(string) bool {
	return func(rel string) bool {
		return set[strings.ToLower(path.Ext(rel))]
	}
}

// isPage reports whether rel is an HTML page.
func isPage(rel string) bool {
	return ExtensionSet(Extensions["html"])[strings.ToLower(path.Ext(rel))]
}

// isScript reports whether rel is a JavaScript module.
func isScript(rel string) bool {
	return ExtensionSet(Extensions["js"])[strings.ToLower(path.Ext(rel))]
}

// linksAsset reports whether a page reference to rel is a dependency.
// Pages link each other in cycles; only their assets are versioned.
func linksAsset(rel string) bool {
	return !isPage(rel)
}

// importsAsset reports whether a script import of rel is a dependency.
// Scripts import each other in cycles and are published verbatim to each
// other; stylesheets, images and data modules are versioned.
func importsAsset(rel string) bool {
	return !isScript(rel) && !isPage(rel)
}
