package model

import "context"

// SeriesExporter stores a finished aggregate somewhere queryable.
type SeriesExporter interface {
	ExportAggregate(ctx context.Context, agg *AggregateResult) (int64, error)
}

// Uploader copies one finished artifact to remote storage.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) error
}
