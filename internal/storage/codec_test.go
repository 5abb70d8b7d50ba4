package storage

import (
	"errors"
	"testing"

	"pixelppo/internal/model"
)

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "r1",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestCheckpointCodecRoundTrip(t *testing.T) {
	in := model.Checkpoint{
		VersionedRecord: CurrentVersion(),
		RunID:           "r1",
		Epoch:           2,
		Round:           7,
		Parameters: map[string][]float64{
			"policy": {0.1, -0.2, 0.3},
			"critic": {1.5},
		},
	}
	data, err := EncodeCheckpoint(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeCheckpoint(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RunID != in.RunID || out.Round != 7 || len(out.Parameters["policy"]) != 3 || out.Parameters["critic"][0] != 1.5 {
		t.Fatalf("unexpected checkpoint: %+v", out)
	}
}

func TestDecodeCheckpointRejectsMissingVersion(t *testing.T) {
	if _, err := DecodeCheckpoint([]byte(`{"run_id":"r1"}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeLossHistoryMalformed(t *testing.T) {
	if _, err := DecodeLossHistory([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}
