package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/gg-curator/internal/metrics"
)

// IDClass names an application-allocated identifier space
type IDClass int

const (
	ClassRecord IDClass = iota
	ClassSequence
	ClassTaxonomy
	ClassOTUCluster
)

var idColumns = map[IDClass]struct{ table, column string }{
	ClassRecord:     {"record", "gg_id"},
	ClassSequence:   {"sequence", "seq_id"},
	ClassTaxonomy:   {"taxonomy", "tax_id"},
	ClassOTUCluster: {"otu_cluster", "cluster_id"},
}

func (c IDClass) String() string {
	if col, ok := idColumns[c]; ok {
		return col.table
	}
	return fmt.Sprintf("IDClass(%d)", int(c))
}

// IDAllocator hands out MAX(id)+1 for an identifier class. It never locks;
// callers allocate, insert and commit inside one lock scope.
type IDAllocator struct {
	session *Session
	locks   *LockManager
}

// Next returns the next free id of class, or 1 for an empty table. If this
// session holds locks that do not include the class table, it fails with
// LockError rather than read a table another writer may be changing.
func (a *IDAllocator) Next(ctx context.Context, class IDClass) (int64, error) {
	col, ok := idColumns[class]
	if !ok {
		return 0, fmt.Errorf("unknown id class %d", int(class))
	}

	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", col.column, col.table)
	if a.locks.Held() {
		alias, locked := a.locks.Alias(col.table)
		if !locked {
			return 0, &LockError{Tables: []string{col.table}, Reason: reasonNotLocked}
		}
		if alias != "" {
			query = fmt.Sprintf("SELECT MAX(%s.%s) FROM %s %s", alias, col.column, col.table, alias)
		}
	}

	var max sql.NullInt64
	if err := a.session.QueryRow(ctx, col.table, query, nil, &max); err != nil {
		return 0, err
	}
	metrics.IDsAllocatedTotal.WithLabelValues(class.String()).Inc()
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}

// Reserve allocates n consecutive ids and returns the first. The caller
// must hold the lock until the rows are committed.
func (a *IDAllocator) Reserve(ctx context.Context, class IDClass, n int) (int64, error) {
	first, err := a.Next(ctx, class)
	if err != nil {
		return 0, err
	}
	if n > 1 {
		metrics.IDsAllocatedTotal.WithLabelValues(class.String()).Add(float64(n - 1))
	}
	return first, nil
}
