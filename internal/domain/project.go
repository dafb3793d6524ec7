package domain

import "time"

type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminology is a named collection of term pairs attached to a project.
type Terminology struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Terms     []Term    `json:"terms"`
	CreatedAt time.Time `json:"created_at"`
}

type Term struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
