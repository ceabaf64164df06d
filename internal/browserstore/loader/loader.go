// Package loader registers browserstore drivers via blank imports.
// Import this package to ensure the default drivers are available.
package loader

import (
	// Register the memory driver
	_ "github.com/silversurfers/silvergate/internal/browserstore/memory"

	// Register the json file driver
	_ "github.com/silversurfers/silvergate/internal/browserstore/json"

	// Register the sqlite driver
	_ "github.com/silversurfers/silvergate/internal/browserstore/sqlite"
)
