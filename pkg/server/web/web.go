// Package web embeds the tutor panel: one page, one script, one stylesheet.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticFS embed.FS

// FS returns the panel assets rooted at the static directory.
func FS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// PanelConfig switches optional panel features.
type PanelConfig struct {
	// LoadingIndicator shows a spinner while a request is in flight.
	LoadingIndicator bool `json:"loadingIndicator"`
	// MaxPDFBytes is checked in the browser before uploading.
	MaxPDFBytes int64 `json:"maxPdfBytes"`
}

func DefaultPanelConfig() PanelConfig {
	return PanelConfig{LoadingIndicator: true}
}
