package sqlstore

import (
	"context"

	"github.com/loykin/appwatch/internal/sqldb"
	"github.com/loykin/appwatch/internal/version"
)

// countRows returns the number of stored rows for p, ignoring the retention limit.
func (s *Store) countRows(ctx context.Context, p version.Platform) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, sqldb.Rebind(s.dialect,
		`SELECT COUNT(*) FROM version_history WHERE platform = ?;`), string(p)).Scan(&n)
	return n, err
}
