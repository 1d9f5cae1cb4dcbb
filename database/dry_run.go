package database

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync/atomic"
)

var dryRunDrivers atomic.Int64

// DryRunDatabase accepts every statement without touching a server.
// With a nil wrapped database it works fully offline.
type DryRunDatabase struct {
	wrapped  Database
	dryRunDB *sql.DB
	config   Config
}

func NewDryRunDatabase(db Database) (*DryRunDatabase, error) {
	dryRunDriverName := fmt.Sprintf("xugudef-dry-run-%d", dryRunDrivers.Add(1)) // Unique name per database instance
	sql.Register(dryRunDriverName, &dryRunDriver{})

	dryRunDB, err := sql.Open(dryRunDriverName, "dry-run")
	if err != nil {
		return nil, err
	}

	d := &DryRunDatabase{
		wrapped:  db,
		dryRunDB: dryRunDB,
	}
	if db != nil {
		d.config = db.GetConfig()
	}
	return d, nil
}

func (d *DryRunDatabase) DB() *sql.DB {
	return d.dryRunDB
}

func (d *DryRunDatabase) GetConfig() Config {
	return d.config
}

func (d *DryRunDatabase) GetDefaultSchema() string {
	if d.wrapped == nil {
		return ""
	}
	return d.wrapped.GetDefaultSchema()
}

func (d *DryRunDatabase) Close() error {
	if err := d.dryRunDB.Close(); err != nil {
		return err
	}
	if d.wrapped == nil {
		return nil
	}
	return d.wrapped.Close()
}

type dryRunDriver struct{}

func (d *dryRunDriver) Open(name string) (driver.Conn, error) {
	return &dryRunConn{}, nil
}

type dryRunConn struct{}

func (c *dryRunConn) Prepare(query string) (driver.Stmt, error) {
	return &dryRunStmt{query: query}, nil
}

func (c *dryRunConn) Close() error {
	return nil
}

func (c *dryRunConn) Begin() (driver.Tx, error) {
	return &dryRunTx{}, nil
}

type dryRunTx struct{}

func (tx *dryRunTx) Commit() error {
	return nil
}

func (tx *dryRunTx) Rollback() error {
	return nil
}

type dryRunStmt struct {
	query string
}

func (s *dryRunStmt) Close() error {
	return nil
}

func (s *dryRunStmt) NumInput() int {
	return -1
}

func (s *dryRunStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.RowsAffected(0), nil
}

func (s *dryRunStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &dryRunRows{}, nil
}

type dryRunRows struct {
	closed bool
}

func (r *dryRunRows) Columns() []string {
	return []string{}
}

func (r *dryRunRows) Close() error {
	r.closed = true
	return nil
}

func (r *dryRunRows) Next(dest []driver.Value) error {
	return io.EOF
}
