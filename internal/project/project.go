package project

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no project exists for the requested id.
var ErrNotFound = errors.New("project not found")

// Project is a purchasable item.
type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Store loads projects by primary key.
type Store interface {
	Get(ctx context.Context, id string) (Project, error)
}
