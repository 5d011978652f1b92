package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type contributionParquet struct {
	PoolID            int64  `parquet:"name=pool_id, type=INT64"`
	ScheduleID        int64  `parquet:"name=schedule_id, type=INT64"`
	Contributor       string `parquet:"name=contributor, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Token             string `parquet:"name=token, type=UTF8, encoding=PLAIN_DICTIONARY"`
	AmountContributed string `parquet:"name=amount_contributed, type=UTF8, encoding=PLAIN_DICTIONARY"`
	FeesPaid          string `parquet:"name=fees_paid, type=UTF8, encoding=PLAIN_DICTIONARY"`
	AmountToReceive   string `parquet:"name=amount_to_receive, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Claimed           bool   `parquet:"name=claimed, type=BOOLEAN"`
	UpdatedAt         string `parquet:"name=updated_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportContributions writes the contribution positions of poolID to a
// parquet file under dir and returns its path.
func (p *Projector) ExportContributions(ctx context.Context, poolID uint64, dir string) (string, error) {
	rows, err := p.Contributions(ctx, poolID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("reporting: create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("pool-%d-contributions.parquet", poolID))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("reporting: create parquet: %w", err)
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(contributionParquet), 1)
	if err != nil {
		file.Close()
		return "", fmt.Errorf("reporting: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		rec := &contributionParquet{
			PoolID:            int64(row.PoolID),
			ScheduleID:        int64(row.ScheduleID),
			Contributor:       row.Contributor,
			Token:             row.Token,
			AmountContributed: row.AmountContributed,
			FeesPaid:          row.FeesPaid,
			AmountToReceive:   row.AmountToReceive,
			Claimed:           row.Claimed,
			UpdatedAt:         row.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			file.Close()
			return "", fmt.Errorf("reporting: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return "", fmt.Errorf("reporting: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("reporting: close parquet file: %w", err)
	}
	return path, nil
}
