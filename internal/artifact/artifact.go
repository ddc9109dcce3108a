// Package artifact persists trained pipeline artifacts as versioned,
// zstd-compressed JSON blobs.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/idgen"
	"github.com/mbd888/fraudscore/internal/pipeline"
)

var (
	ErrNotFound = errors.New("artifact not found")
	ErrCorrupt  = errors.New("artifact blob is corrupt")
)

// Record is one stored artifact version. Blob is empty in List results.
type Record struct {
	ID        string          `json:"id"`
	Version   int             `json:"version"`
	RunID     string          `json:"runId"`
	OOFAUC    evaluate.Metric `json:"oofAuc"`
	CreatedAt time.Time       `json:"createdAt"`
	Blob      []byte          `json:"-"`
}

// Store persists artifact versions. Versions start at 1 and increase by one
// per Save.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, version int) (*Record, error)
	Latest(ctx context.Context) (*Record, error)
	// List returns metadata only, newest first.
	List(ctx context.Context) ([]Record, error)
	Ping(ctx context.Context) error
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// Encode compresses the JSON form of art.
func Encode(art *pipeline.Artifact) ([]byte, error) {
	raw, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

// Decode reverses Encode and checks the result.
func Decode(blob []byte) (*pipeline.Artifact, error) {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var art pipeline.Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := art.Check(); err != nil {
		return nil, err
	}
	return &art, nil
}

// NewRecord encodes art into an unsaved record.
func NewRecord(art *pipeline.Artifact) (*Record, error) {
	blob, err := Encode(art)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:        idgen.New(),
		RunID:     art.RunID,
		OOFAUC:    art.OOFAUC,
		CreatedAt: art.CreatedAt,
		Blob:      blob,
	}, nil
}

// Publish encodes and saves art, returning the stored record.
func Publish(ctx context.Context, s Store, art *pipeline.Artifact) (*Record, error) {
	rec, err := NewRecord(art)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	return rec, nil
}

// Load decodes the given version, or the latest when version is 0.
func Load(ctx context.Context, s Store, version int) (*pipeline.Artifact, *Record, error) {
	var (
		rec *Record
		err error
	)
	if version == 0 {
		rec, err = s.Latest(ctx)
	} else {
		rec, err = s.Get(ctx, version)
	}
	if err != nil {
		return nil, nil, err
	}
	art, err := Decode(rec.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("version %d: %w", rec.Version, err)
	}
	return art, rec, nil
}

func metaOnly(r *Record) Record {
	cp := *r
	cp.Blob = nil
	return cp
}
