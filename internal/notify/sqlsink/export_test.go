package sqlsink

import "context"

// countRows returns the number of stored change rows.
func (s *Sink) countRows(ctx context.Context) (int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM version_changes;`).Scan(&n)
	return n, err
}
