package domain

import "time"

// Department groups users. Code is the unique short name (e.g. "DEV").
type Department struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}
