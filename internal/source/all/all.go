// Package all registers every import source backend.
package all

import (
	_ "tabular/internal/source/mssql"
	_ "tabular/internal/source/postgres"
	_ "tabular/internal/source/sqlite"
)
