package storage

import (
	"encoding/json"
	"errors"

	"github.com/pdturney/management-theory/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions on a record before it
// is encoded.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeEliteSnapshot(s model.EliteSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeEliteSnapshot(data []byte) (model.EliteSnapshot, error) {
	var snapshot model.EliteSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.EliteSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.EliteSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeFusionEvent(e model.FusionEvent) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeFusionEvent(data []byte) (model.FusionEvent, error) {
	var event model.FusionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.FusionEvent{}, err
	}
	if err := checkVersion(event.VersionedRecord); err != nil {
		return model.FusionEvent{}, err
	}
	return event, nil
}

func EncodeRunDiagnostics(d model.RunDiagnostics) ([]byte, error) {
	return json.Marshal(d)
}

func DecodeRunDiagnostics(data []byte) (model.RunDiagnostics, error) {
	var diagnostics model.RunDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return model.RunDiagnostics{}, err
	}
	if err := checkVersion(diagnostics.VersionedRecord); err != nil {
		return model.RunDiagnostics{}, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
