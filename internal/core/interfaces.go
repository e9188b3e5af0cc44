package core

import "context"

// HistoryWriter receives one record per finished installation task
type HistoryWriter interface {
	Record(ctx context.Context, rec HistoryRecord) error
}

// HistoryWriterFunc adapts a function to HistoryWriter
type HistoryWriterFunc func(ctx context.Context, rec HistoryRecord) error

// Record implements HistoryWriter
func (f HistoryWriterFunc) Record(ctx context.Context, rec HistoryRecord) error {
	return f(ctx, rec)
}
