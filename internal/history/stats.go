package history

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
)

// Stats summarizes the stored history
type Stats struct {
	Total       int                        `json:"total"`
	Succeeded   int                        `json:"succeeded"`
	Failed      int                        `json:"failed"`
	Cancelled   int                        `json:"cancelled"`
	SuccessRate float64                    `json:"success_rate"`
	ByFormat    map[core.PackageFormat]int `json:"by_format"`
}

// Stats computes totals per status and format
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByFormat: make(map[core.PackageFormat]int)}

	rows, err := s.read.QueryContext(ctx, "SELECT status, format, COUNT(*) FROM history GROUP BY status, format")
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, format string
		var n int
		if err := rows.Scan(&status, &format, &n); err != nil {
			return st, fmt.Errorf("scan stats: %w", err)
		}
		st.Total += n
		st.ByFormat[core.PackageFormat(format)] += n
		switch core.TaskStatus(status) {
		case core.StatusSucceeded:
			st.Succeeded += n
		case core.StatusFailed:
			st.Failed += n
		case core.StatusCancelled:
			st.Cancelled += n
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("rows error: %w", err)
	}

	if st.Total > 0 {
		st.SuccessRate = float64(st.Succeeded) / float64(st.Total) * 100
	}
	return st, nil
}

// ExportFormat selects the export encoding
type ExportFormat string

// Export encodings
const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat validates an export format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case ExportJSON:
		return ExportJSON, nil
	case ExportCSV:
		return ExportCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use json or csv)", s)
}

type exportDocument struct {
	ExportedAt time.Time            `json:"exported_at"`
	Stats      Stats                `json:"stats"`
	Records    []core.HistoryRecord `json:"records"`
}

var csvHeader = []string{"id", "timestamp", "task_id", "package_name", "version", "format", "status", "error_kind", "attempts", "message", "package_path"}

// Export writes every record to w
func (s *Store) Export(ctx context.Context, w io.Writer, format ExportFormat) error {
	records, err := s.List(ctx, Filter{})
	if err != nil {
		return err
	}

	switch format {
	case ExportJSON:
		stats, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		if records == nil {
			records = []core.HistoryRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(exportDocument{ExportedAt: time.Now().UTC(), Stats: stats, Records: records}); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil

	case ExportCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		for _, r := range records {
			row := []string{
				strconv.FormatInt(r.ID, 10),
				r.Timestamp.UTC().Format(time.RFC3339),
				r.TaskID,
				r.PackageName,
				r.Version,
				string(r.Format),
				string(r.Status),
				r.ErrorKind,
				strconv.Itoa(r.Attempts),
				r.Message,
				r.PackagePath,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	}

	return fmt.Errorf("unsupported export format %q", format)
}
