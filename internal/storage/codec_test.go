package storage

import (
	"errors"
	"testing"

	"atsnp/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := Versioned(model.RunRecord{
		ID:       "run-1",
		Motif:    "MA0001",
		MotifLen: 2,
		Variants: 2,
		Samples:  100,
		P:        0.1,
		PValues:  []float64{0.25, 1},
		Diagnostics: model.Diagnostics{
			Percentile: -1.5,
			Theta:      0.42,
		},
	})
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != run.ID || decoded.Diagnostics.Theta != 0.42 || len(decoded.PValues) != 2 || decoded.PValues[0] != 0.25 {
		t.Fatalf("unexpected decoded run: %+v", decoded)
	}
}

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "old",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
