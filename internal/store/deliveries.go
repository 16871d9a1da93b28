package store

import (
	"fmt"
	"time"
)

// RecordDelivery appends a delivery outcome.
func (s *Store) RecordDelivery(d Delivery) error {
	_, err := s.db.Exec(
		`INSERT INTO deliveries (entity, project, timestamp, is_write, extras, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.Entity, d.Project, d.Timestamp, boolToInt(d.IsWrite), d.Extras, d.Status,
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// RecentDeliveries returns the most recent delivery outcomes, newest first.
func (s *Store) RecentDeliveries(limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, entity, project, timestamp, is_write, extras, status, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		var isWrite int
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Entity, &d.Project, &d.Timestamp, &isWrite, &d.Extras, &d.Status, &createdAt); err != nil {
			return nil, err
		}
		d.IsWrite = isWrite != 0
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
