package models

import (
	"fmt"
	"time"
)

type Status string

const (
	PendingStatus   Status = "pending"
	CommittedStatus Status = "committed"
	FailedStatus    Status = "failed"
)

// MaxNameLength mirrors the width of the name column.
const MaxNameLength = 150

// Video is the metadata record of one uploaded video.
// URL stays empty and Thumbnail nil while the record is pending.
type Video struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	URL         string    `db:"url"`
	Thumbnail   *string   `db:"thumbnail"`
	Status      Status    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (v *Video) String() string {
	return fmt.Sprintf("<Video %d - %s>", v.ID, v.Name)
}

// FinalizeParams carries everything the finalizer writes in one transaction.
type FinalizeParams struct {
	ID        int64
	URL       string
	Thumbnail *string
	Event     DomainEvent
}
