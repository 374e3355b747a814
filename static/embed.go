// Package static embeds the page stylesheet.
package static

import (
	"embed"
	"io/fs"
)

//go:embed css/*
var embedded embed.FS

// FS returns the embedded assets rooted at the package directory.
func FS() fs.FS {
	return embedded
}
