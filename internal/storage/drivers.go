package storage

import (
	// Database drivers matched by Open's driver names.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)
