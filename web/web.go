// Package web bundles the browser test page served at the gateway root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var content embed.FS

// Content returns the embedded static files.
func Content() fs.FS {
	return content
}
