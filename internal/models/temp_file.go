package models

import "time"

// TempFile is an uploaded file held by the transport until it expires
type TempFile struct {
	ID        string    `json:"id" badgerhold:"key"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at" badgerholdIndex:"CreatedAt"`
}
