// ABOUTME: Embeds the chat frontend into the binary using go:embed
// ABOUTME: Provides staticFS for serving the single-page client

package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticAssets embed.FS

// staticFS returns the embedded frontend rooted at the static directory.
func staticFS() fs.FS {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		// The static directory is embedded at compile time; a failure here
		// means the binary itself is broken.
		panic(err)
	}
	return sub
}
