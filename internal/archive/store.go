package archive

import (
	"encoding/json"
	"errors"
	"fmt"

	"qa-chatbot/internal/domain"
)

// Store errors. Callers distinguish these with errors.Is; everything else a
// store returns is a plain persistence failure.
var (
	ErrNotFound  = errors.New("archive: record not found")
	ErrCorrupted = errors.New("archive: record is corrupted")
)

// document is the serialized archive payload: a timestamp identifier plus the
// ordered message list. This is the on-disk schema of the file store and the
// payload attribute of the DynamoDB store.
type document struct {
	Timestamp string        `json:"timestamp"`
	Messages  []domain.Turn `json:"messages"`
}

// encodeRecord serializes an archive record into its payload document.
func encodeRecord(rec domain.ArchiveRecord) ([]byte, error) {
	doc := document{Timestamp: rec.ID, Messages: rec.Turns}
	// A nil slice would serialize the messages field as JSON null, which
	// decodeRecord rejects; an empty session archives as an empty list.
	if doc.Messages == nil {
		doc.Messages = []domain.Turn{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("archive: encode record %q: %w", rec.ID, err)
	}
	return data, nil
}

// decodeRecord parses a payload document back into an archive record. Any
// shape violation (unparsable JSON, missing messages field, malformed turn)
// reports ErrCorrupted.
func decodeRecord(id string, data []byte) (domain.ArchiveRecord, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: parse record %q: %v: %w", id, err, ErrCorrupted)
	}
	if doc.Messages == nil {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q has no messages field: %w", id, ErrCorrupted)
	}
	for i, turn := range doc.Messages {
		if !turn.Role.Valid() {
			return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q message %d has unknown role %q: %w", id, i, turn.Role, ErrCorrupted)
		}
		if turn.Content == "" {
			return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q message %d has empty content: %w", id, i, ErrCorrupted)
		}
	}
	return domain.ArchiveRecord{ID: id, Turns: doc.Messages}, nil
}
