// Package postgresql implements the catalog and record stores on PostgreSQL.
package postgresql

import (
	"github.com/tansive/tablebase/internal/tablesrv/db/dbmanager"
)

// NewTablesDb returns the managers bound to a single scoped connection.
func NewTablesDb(c dbmanager.ScopedConn) (*catalogManager, *recordManager, *connectionManager) {
	return newCatalogManager(c), newRecordManager(c), newConnectionManager(c)
}
