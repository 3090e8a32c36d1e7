// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories with the storage package. The available kinds are then:
//
//   - "sqlite"   (tvetl/internal/storage/sqlite)
//   - "postgres" (tvetl/internal/storage/postgres)
//   - "mssql"    (tvetl/internal/storage/mssql)
//   - "mysql"    (tvetl/internal/storage/mysql)
//
// A binary that supports only a subset of backends can import those
// packages directly instead.
package all

import (
	_ "tvetl/internal/storage/mssql"
	_ "tvetl/internal/storage/mysql"
	_ "tvetl/internal/storage/postgres"
	_ "tvetl/internal/storage/sqlite"
)
