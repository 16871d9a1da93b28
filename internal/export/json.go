package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/avosk/blendtime/internal/store"
)

type jsonExport struct {
	ExportedAt   string         `json:"exported_at"`
	Days         int            `json:"days"`
	TotalSeconds int64          `json:"total_seconds"`
	Totals       []jsonTotal    `json:"totals"`
	Deliveries   []jsonDelivery `json:"deliveries,omitempty"`
}

type jsonTotal struct {
	Date     string `json:"date"`
	Seconds  int64  `json:"seconds"`
	Duration string `json:"duration"`
}

type jsonDelivery struct {
	Entity    string  `json:"entity"`
	Project   string  `json:"project"`
	Timestamp float64 `json:"timestamp"`
	IsWrite   bool    `json:"is_write"`
	Extras    int     `json:"extras"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

func ToJSON(totals []store.DailyTotal, deliveries []store.Delivery, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Days:       len(totals),
	}

	for _, t := range totals {
		export.TotalSeconds += t.Seconds
		export.Totals = append(export.Totals, jsonTotal{
			Date:     t.Date,
			Seconds:  t.Seconds,
			Duration: formatDuration(t.Seconds),
		})
	}

	for _, d := range deliveries {
		export.Deliveries = append(export.Deliveries, jsonDelivery{
			Entity:    d.Entity,
			Project:   d.Project,
			Timestamp: d.Timestamp,
			IsWrite:   d.IsWrite,
			Extras:    d.Extras,
			Status:    d.Status,
			CreatedAt: d.CreatedAt.Local().Format(time.RFC3339),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
