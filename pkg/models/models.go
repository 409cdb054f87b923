package models

import (
	"time"

	"gorm.io/gorm"
)

// Kind identifies one of the two entity kinds the blog stores.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Operation is the logical mutation recorded in a write outcome.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// BackendRole names a store's position in the dual-write pair. The role is
// fixed at wiring time: Primary is the pre-migration system of record,
// Secondary is the migration target, regardless of which one currently holds
// write authority.
type BackendRole string

const (
	RolePrimary   BackendRole = "primary"
	RoleSecondary BackendRole = "secondary"
)

// Post is a blog post. The ID is assigned by the write-authority store at
// creation and reused verbatim as the other store's record key; the two
// stores must never disagree on identity. CreatedAt is set once, UpdatedAt on
// every update.
type Post struct {
	ID        PostID    `gorm:"type:uuid;primary_key" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"not null" json:"content"`
	Author    string    `gorm:"not null;index" json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPostID()
	}
	return nil
}

// Comment belongs to exactly one Post. PostID is immutable after creation;
// deleting the parent Post deletes its Comments in both stores.
type Comment struct {
	ID        CommentID `gorm:"type:uuid;primary_key" json:"id"`
	PostID    PostID    `gorm:"type:uuid;not null;index" json:"post_id"`
	Commenter string    `gorm:"not null" json:"commenter"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook to generate ID if not set
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID.IsZero() {
		c.ID = NewCommentID()
	}
	return nil
}

// BackendResult is one store's result for a single mutation attempt.
// Attempted is false when the coordinator never reached this store (for
// example the authority failed first, or the phase excludes it).
type BackendResult struct {
	Attempted  bool   `json:"attempted"`
	OK         bool   `json:"ok"`
	ErrorClass string `gorm:"size:32" json:"error_class,omitempty"`
}

// WriteOutcome is one append-only reconciliation ledger entry: the
// per-backend results of a single logical mutation. Outcomes are recorded
// after every mutation attempt, successes included, and are never mutated.
// Seq is assigned by the ledger and is strictly increasing in append order,
// so one entity's outcome history reads back in real attempt order.
type WriteOutcome struct {
	Seq        uint64        `gorm:"primaryKey;autoIncrement" json:"seq"`
	Kind       Kind          `gorm:"size:16;not null;index:idx_write_outcomes_entity" json:"kind"`
	EntityID   string        `gorm:"size:64;not null;index:idx_write_outcomes_entity" json:"entity_id"`
	Op         Operation     `gorm:"size:16;not null" json:"op"`
	Primary    BackendResult `gorm:"embedded;embeddedPrefix:primary_" json:"primary"`
	Secondary  BackendResult `gorm:"embedded;embeddedPrefix:secondary_" json:"secondary"`
	RecordedAt time.Time     `gorm:"not null;index" json:"recorded_at"`
}

// Result returns the recorded result for the given backend role.
func (o WriteOutcome) Result(role BackendRole) BackendResult {
	if role == RoleSecondary {
		return o.Secondary
	}
	return o.Primary
}

// Consistent reports whether every store the coordinator attempted succeeded.
// A mutation with Consistent() == false committed on the authority but left
// the stores diverged, pending reconciliation.
func (o WriteOutcome) Consistent() bool {
	if o.Primary.Attempted && !o.Primary.OK {
		return false
	}
	if o.Secondary.Attempted && !o.Secondary.OK {
		return false
	}
	return true
}

// Ref returns the entity reference this outcome is about.
func (o WriteOutcome) Ref() EntityRef {
	return EntityRef{Kind: o.Kind, ID: o.EntityID}
}

// EntityRef identifies an entity across both stores by kind and identity.
type EntityRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}
