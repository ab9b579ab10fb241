// Package elderquery holds assets embedded into the binary.
package elderquery

import "embed"

//go:embed migrations
var MigrationsFS embed.FS
