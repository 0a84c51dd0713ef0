package store

import "database/sql"

// GetWatermark returns the stored watermark for an account handle, or nil if
// the account has never completed a poll.
func (s *Store) GetWatermark(handle string) (*Watermark, error) {
	var w Watermark
	err := s.db.QueryRow(`
		SELECT handle, last_seen_id, last_checked_at
		FROM watermarks WHERE handle = ?
	`, handle).Scan(&w.Handle, &w.LastSeenID, &w.LastCheckedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWatermark inserts or overwrites the watermark for an account
func (s *Store) SaveWatermark(w Watermark) error {
	_, err := s.db.Exec(`
		INSERT INTO watermarks (handle, last_seen_id, last_checked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			last_seen_id = excluded.last_seen_id,
			last_checked_at = excluded.last_checked_at
	`, w.Handle, w.LastSeenID, w.LastCheckedAt.UTC())
	return err
}
