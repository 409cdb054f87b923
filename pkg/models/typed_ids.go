package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// PostID is a typed ID for posts
type PostID struct {
	uuid uuid.UUID
}

func NewPostID() PostID {
	return PostID{uuid: uuid.New()}
}

func NewPostIDFromUUID(id uuid.UUID) PostID {
	return PostID{uuid: id}
}

func ParsePostID(s string) (PostID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PostID{}, fmt.Errorf("invalid post ID: %w", err)
	}
	return PostID{uuid: id}, nil
}

func (p PostID) UUID() uuid.UUID { return p.uuid }
func (p PostID) String() string  { return p.uuid.String() }
func (p PostID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PostID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "posts",
		ID:    p.uuid.String(),
	}
}

func (p PostID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PostID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

func (p PostID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"posts", p.uuid.String()},
	})
}

func (p *PostID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "posts", &p.uuid)
}

func (p PostID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PostID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PostID) GormDataType() string { return "uuid" }

// CommentID is a typed ID for comments
type CommentID struct {
	uuid uuid.UUID
}

func NewCommentID() CommentID {
	return CommentID{uuid: uuid.New()}
}

func NewCommentIDFromUUID(id uuid.UUID) CommentID {
	return CommentID{uuid: id}
}

func ParseCommentID(s string) (CommentID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CommentID{}, fmt.Errorf("invalid comment ID: %w", err)
	}
	return CommentID{uuid: id}, nil
}

func (c CommentID) UUID() uuid.UUID { return c.uuid }
func (c CommentID) String() string  { return c.uuid.String() }
func (c CommentID) IsZero() bool    { return c.uuid == uuid.Nil }

func (c CommentID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "comments",
		ID:    c.uuid.String(),
	}
}

func (c CommentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.uuid.String())
}

func (c *CommentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	c.uuid = id
	return nil
}

func (c CommentID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"comments", c.uuid.String()},
	})
}

func (c *CommentID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "comments", &c.uuid)
}

func (c CommentID) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.uuid.String(), nil
}

func (c *CommentID) Scan(value any) error {
	return scanUUID(value, &c.uuid)
}

func (CommentID) GormDataType() string { return "uuid" }

// Helper functions

// scanUUID is a helper for implementing sql.Scanner interface for PostgreSQL/GORM
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID is a helper for unmarshaling SurrealDB RecordID from CBOR.
// SurrealDB uses CBOR tag 8 to identify RecordID types in its binary protocol.
// The RecordID is encoded as [table_name, id_string] within the tag.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// Check if this is a CBOR tag (major type 6)
	majorType := data[0] >> 5
	if majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}

	// SurrealDB uses tag 8 for RecordID
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}

	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}

	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}

	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsedUUID, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}

	*target = parsedUUID
	return nil
}
