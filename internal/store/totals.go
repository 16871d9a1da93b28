package store

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// UpsertDailyTotal stores the tracked seconds for a day, replacing any
// previous value for the same date.
func (s *Store) UpsertDailyTotal(day time.Time, seconds int64) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := s.db.Exec(
		`INSERT INTO daily_totals (date, seconds, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		 ON CONFLICT(date) DO UPDATE SET
		   seconds = excluded.seconds,
		   updated_at = excluded.updated_at`,
		day.Format(dateLayout), seconds,
	)
	if err != nil {
		return fmt.Errorf("upsert daily total: %w", err)
	}
	return nil
}

// GetDailyTotals returns totals for the half-open range [from, to), ordered
// by date ascending.
func (s *Store) GetDailyTotals(from, to time.Time) ([]DailyTotal, error) {
	rows, err := s.db.Query(
		`SELECT date, seconds FROM daily_totals
		 WHERE date >= ? AND date < ?
		 ORDER BY date`,
		from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var dt DailyTotal
		if err := rows.Scan(&dt.Date, &dt.Seconds); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

// LastDaysTotals returns totals for the n days ending today, including zero
// entries for days with no record so charts stay aligned. Days are keyed by
// the local calendar, the same basis the tracked-time counter rolls over on.
func (s *Store) LastDaysTotals(n int) ([]DailyTotal, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, 1-n)

	stored, err := s.GetDailyTotals(from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]int64, len(stored))
	for _, dt := range stored {
		byDate[dt.Date] = dt.Seconds
	}

	totals := make([]DailyTotal, 0, n)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		totals = append(totals, DailyTotal{Date: date, Seconds: byDate[date]})
	}
	return totals, nil
}

// TodaySeconds returns the stored total for the local calendar day, or 0.
func (s *Store) TodaySeconds() (int64, error) {
	var secs int64
	err := s.db.QueryRow(
		`SELECT seconds FROM daily_totals WHERE date = ?`,
		time.Now().Format(dateLayout),
	).Scan(&secs)
	if err != nil {
		return 0, nil // no row for today yet
	}
	return secs, nil
}
