package bandsite

import "embed"

// EmbeddedAssets contains the script shipped with the site: bandsite.js
// dismisses dashboard notifications and re-enables panel forms after a
// failed request.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
