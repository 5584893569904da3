package steprunner

import (
	"context"
	"fmt"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
)

// RangeSource abstracts "head the material, then range-fetch it" over
// either a plain object-store key or a signed HTTP URL, so material
// preparation and body processing don't care which one backs a run.
type RangeSource interface {
	Head(ctx context.Context) (objectstore.HeadResult, error)
	GetRange(ctx context.Context, start, end int64) (objectstore.RangeResult, error)
}

type objectStoreSource struct {
	store objectstore.Store
	key   string
}

func (s objectStoreSource) Head(ctx context.Context) (objectstore.HeadResult, error) {
	return s.store.Head(ctx, s.key)
}

func (s objectStoreSource) GetRange(ctx context.Context, start, end int64) (objectstore.RangeResult, error) {
	return s.store.GetRange(ctx, s.key, start, end)
}

// NewObjectStoreSource adapts a plain object-store key into a RangeSource.
func NewObjectStoreSource(store objectstore.Store, key string) RangeSource {
	return objectStoreSource{store: store, key: key}
}

type httpSource struct {
	client *objectstore.HTTPRangeClient
	url    string
}

func (s httpSource) Head(ctx context.Context) (objectstore.HeadResult, error) {
	return s.client.Head(ctx, s.url)
}

func (s httpSource) GetRange(ctx context.Context, start, end int64) (objectstore.RangeResult, error) {
	return s.client.GetRange(ctx, s.url, start, end)
}

// NewHTTPSource adapts a signed URL into a RangeSource.
func NewHTTPSource(client *objectstore.HTTPRangeClient, url string) RangeSource {
	return httpSource{client: client, url: url}
}

// MaterialMeta is the persisted descriptor produced by PrepareMaterial.
type MaterialMeta struct {
	Delimiter    byte           `json:"delimiter"`
	Columns      map[string]int `json:"columns"`
	HeaderEndPos int64          `json:"header_end_pos"`
	TotalBytes   int64          `json:"total_bytes"`
	Mode         string         `json:"mode"` // "range" | "chunk_files"
}

const (
	ModeRange      = "range"
	ModeChunkFiles = "chunk_files"

	headerProbeBytes = 8192
	rangeMargin      = 256 * 1024
)

// PrepareMaterial implements the "preparing_material" sub-phase: HEAD for
// total size, range-probe the header, detect delimiter/columns, and
// decide the body-fetch mode.
func PrepareMaterial(ctx context.Context, src RangeSource, maxFetchBytes int64) (MaterialMeta, error) {
	head, err := src.Head(ctx)
	if err != nil {
		return MaterialMeta{}, fmt.Errorf("steprunner: head material: %w", err)
	}

	probe, err := src.GetRange(ctx, 0, headerProbeBytes-1)
	if err != nil {
		return MaterialMeta{}, fmt.Errorf("steprunner: probe material header: %w", err)
	}

	total := head.TotalBytes
	if total == 0 {
		total = probe.ContentLen
	}

	lines := splitLines(probe.Body)
	if len(lines) == 0 {
		return MaterialMeta{}, core.NewError("steprunner.PrepareMaterial", "step", "", "parse_merge", fmt.Errorf("empty material header"))
	}
	headerLine := lines[0]
	delim := DetectDelimiter(headerLine)
	cols := ResolveColumns(SplitHeader(headerLine, delim))

	headerEndPos := int64(len(headerLine)) + 1 // +1 for the trailing \n this function assumes was stripped by splitLines

	mode := ModeRange
	if probe.StatusCode == 200 && total > maxFetchBytes+rangeMargin {
		mode = ModeChunkFiles
	}

	return MaterialMeta{
		Delimiter:    delim,
		Columns:      cols,
		HeaderEndPos: headerEndPos,
		TotalBytes:   total,
		Mode:         mode,
	}, nil
}
