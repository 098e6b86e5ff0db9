package journal

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// traceConnector opens sqlite3 connections that log every statement at
// debug level. Use with sql.OpenDB.
type traceConnector struct {
	dsn    string
	driver *sqlite3.SQLiteDriver
	logger *slog.Logger
}

func newTraceConnector(dsn string, logger *slog.Logger) *traceConnector {
	return &traceConnector{dsn: dsn, driver: &sqlite3.SQLiteDriver{}, logger: logger}
}

func (c *traceConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	sc, ok := conn.(*sqlite3.SQLiteConn)
	if !ok {
		_ = conn.Close()
		return nil, errors.New("journal: unexpected sqlite3 connection type")
	}
	return &traceConn{SQLiteConn: sc, logger: c.logger}, nil
}

func (c *traceConnector) Driver() driver.Driver {
	return c.driver
}

// traceConn logs direct Exec/Query calls; everything else is the embedded
// sqlite3 connection.
type traceConn struct {
	*sqlite3.SQLiteConn
	logger *slog.Logger
}

func (c *traceConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.log(ctx, "exec", query, args)
	return c.SQLiteConn.ExecContext(ctx, query, args)
}

func (c *traceConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.log(ctx, "query", query, args)
	return c.SQLiteConn.QueryContext(ctx, query, args)
}

func (c *traceConn) log(ctx context.Context, op, query string, args []driver.NamedValue) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.logger.DebugContext(ctx, "sql", "op", op, "sql", query, "args", vals)
}
