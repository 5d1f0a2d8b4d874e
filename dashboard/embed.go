// Package dashboard provides the embedded web UI for the live plot.
//
// The page draws every channel on a canvas, follows updates over a websocket
// (falling back to Server-Sent Events) and exposes the window length as a
// slider and a text field. Embedding keeps the binary self-contained.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Plot page with inline CSS and JavaScript
//
// The server replaces every {{.Title}} marker in index.html with the
// HTML-escaped dashboard title.
//
//go:embed assets/*
var Assets embed.FS
