package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
)

var memSeq atomic.Int64

// OpenMemory opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so the shared-cache database survives
// and concurrent callers never see a locked table.
func OpenMemory(ctx context.Context, name string) (*sql.DB, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, memSeq.Add(1))
	h, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	h.SetMaxOpenConns(1)
	return h, nil
}
