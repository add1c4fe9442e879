package datarecording

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// RunReader reads back what a RunRecorder and an ExecRecorder wrote.
type RunReader struct {
	reader DataReader
}

// OpenRunReader opens an existing recording. The path may be given with or
// without the .sqlite3 extension.
func OpenRunReader(path string) (*RunReader, error) {
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}

	return NewRunReader(NewReader(path)), nil
}

// NewRunReader maps the recorder tables on reader.
func NewRunReader(reader DataReader) *RunReader {
	reader.MapTable(RoundTableName, RoundEntry{})
	reader.MapTable(LifecycleTableName, LifecycleEntry{})
	reader.MapTable(execTableName, ExecInfo{})

	return &RunReader{reader: reader}
}

// ExecInfo returns the properties of the process that made the recording.
func (r *RunReader) ExecInfo(ctx context.Context) ([]ExecInfo, error) {
	entries, _, err := QueryAs[ExecInfo](ctx, r.reader, execTableName,
		QueryParams{OrderBy: "rowid"})

	return entries, err
}

// Lifecycle returns the loop starts and stops in the order they happened.
// An empty run selects all the runs.
func (r *RunReader) Lifecycle(
	ctx context.Context,
	run string,
) ([]LifecycleEntry, error) {
	params := runFilter(run)
	params.OrderBy = "WallTime, rowid"

	entries, _, err := QueryAs[LifecycleEntry](
		ctx, r.reader, LifecycleTableName, params)

	return entries, err
}

// Rounds returns a page of completed rounds in the order they happened,
// and the number of rounds recorded for the run. An empty run selects all
// the runs.
func (r *RunReader) Rounds(
	ctx context.Context,
	run string,
	limit, offset int,
) ([]RoundEntry, int, error) {
	params := runFilter(run)
	params.OrderBy = "WallTime, rowid"
	params.Limit = limit
	params.Offset = offset

	return QueryAs[RoundEntry](ctx, r.reader, RoundTableName, params)
}

// Close closes the recording.
func (r *RunReader) Close() error {
	return r.reader.Close()
}

func runFilter(run string) QueryParams {
	if run == "" {
		return QueryParams{}
	}

	return QueryParams{Where: "Run = ?", Args: []any{run}}
}
