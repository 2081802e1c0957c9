package model

import (
	"encoding/json"
	"fmt"
)

// DocumentVersion is the version of the persisted result document.
const DocumentVersion = 1

type resultDocument struct {
	Version int         `json:"version"`
	Result  *ScanResult `json:"result"`
}

// EncodeResult serializes a result into the versioned storage document.
func EncodeResult(r *ScanResult) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("encode result: nil result")
	}
	return json.Marshal(resultDocument{Version: DocumentVersion, Result: r})
}

// DecodeResult parses a storage document. Totals are recomputed from the
// issue lists rather than trusted from storage.
func DecodeResult(data []byte) (*ScanResult, error) {
	var doc resultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("decode result: unsupported document version %d", doc.Version)
	}
	if doc.Result == nil {
		return nil, fmt.Errorf("decode result: missing result")
	}
	doc.Result.Recount()
	return doc.Result, nil
}
