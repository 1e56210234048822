// Package gateway provides embedded frontend assets for production builds.
package gateway

import "embed"

// StaticFS holds the frontend bundle served under /static/. The page
// shells reference these files; embedding them keeps the gateway a
// single deployable binary.
//
//go:embed all:frontend/static
var StaticFS embed.FS
