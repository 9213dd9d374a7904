package model

import "time"

// Memory is one stored fact belonging to one user. Content is immutable after
// creation; the embedding derived from it lives in the vector index only.
type Memory struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Content   string                 `json:"content"`
	IsDeleted bool                   `json:"isDeleted"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MemoryStats aggregates every row a user ever created, active and deleted.
type MemoryStats struct {
	Total        int        `json:"total"`
	Active       int        `json:"active"`
	Deleted      int        `json:"deleted"`
	FirstCreated *time.Time `json:"firstCreated,omitempty"`
	LastCreated  *time.Time `json:"lastCreated,omitempty"`
}
