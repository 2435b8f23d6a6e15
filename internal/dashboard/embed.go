package dashboard

import "embed"

// assets holds the page template and the browser script.
//
//go:embed templates static
var assets embed.FS
