package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dan-solli/goalgraph/pkg/model"
)

// Record kinds, used for both error reporting and the SQLite kind column.
const (
	kindGoal     = "goal"
	kindSnapshot = "snapshot"
	kindBranch   = "branch"
	kindProject  = "project"
	kindSession  = "session"
	kindIndex    = "index"
)

type schemaHeader struct {
	SchemaVersion int `yaml:"schema_version" json:"schema_version"`
}

// encodeRecord renders a record as a YAML document.
func encodeRecord(kind, id string, v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, &model.StorageError{Op: "encode " + kind, Path: id, Err: err}
	}
	return data, nil
}

// decodeRecord parses a YAML record, refusing versions this build does not know.
func decodeRecord(kind, id string, data []byte, v any) error {
	var hdr schemaHeader
	if err := yaml.Unmarshal(data, &hdr); err != nil {
		return &model.StorageError{Op: "decode " + kind, Path: id, Err: err}
	}
	if hdr.SchemaVersion != model.SchemaVersion {
		return &model.SchemaError{Kind: kind, ID: id, Version: hdr.SchemaVersion}
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return &model.StorageError{Op: "decode " + kind, Path: id, Err: err}
	}
	return nil
}

func encodeIndex(idx *model.Index) ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, &model.StorageError{Op: "encode index", Err: err}
	}
	return append(data, '\n'), nil
}

func decodeIndex(data []byte) (*model.Index, error) {
	var hdr schemaHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, &model.StorageError{Op: "decode index", Err: err}
	}
	if hdr.SchemaVersion != model.IndexSchemaVersion {
		return nil, &model.SchemaError{Kind: kindIndex, ID: kindIndex, Version: hdr.SchemaVersion}
	}
	var idx model.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &model.StorageError{Op: "decode index", Err: err}
	}
	return &idx, nil
}

// checkID rejects identifiers that would escape their directory.
func checkID(kind, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &model.ValidationError{Field: kind + " id", Reason: "must not be empty"}
	case id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id:
		return &model.ValidationError{Field: kind + " id", Reason: fmt.Sprintf("%q is not a valid identifier", id)}
	}
	return nil
}

// stamp fills in the current schema version on records built without one.
func stamp(version *int) {
	if *version == 0 {
		*version = model.SchemaVersion
	}
}

func defaultDBPath(root string) string {
	return filepath.Join(root, "goalgraph.db")
}
