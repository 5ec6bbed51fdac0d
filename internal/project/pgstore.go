package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbgen "github.com/noah-isme/backend-lavault/internal/db/gen"
)

// Querier defines the sqlc generated queries used by PGStore.
type Querier interface {
	GetProjectByID(ctx context.Context, id string) (dbgen.Project, error)
}

// PGStore reads projects from Postgres.
type PGStore struct {
	Q Querier
}

// NewPGStore constructs a PGStore over the given pool or transaction.
func NewPGStore(db dbgen.DBTX) *PGStore {
	return &PGStore{Q: dbgen.New(db)}
}

// Get returns the project with the given id or ErrNotFound.
func (s *PGStore) Get(ctx context.Context, id string) (Project, error) {
	row, err := s.Q.GetProjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	price, err := numericToFloat(row.Price)
	if err != nil {
		return Project{}, fmt.Errorf("project %s price: %w", id, err)
	}
	return Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Price:       price,
	}, nil
}

func numericToFloat(n pgtype.Numeric) (float64, error) {
	if !n.Valid {
		return 0, errors.New("price is null")
	}
	f, err := n.Float64Value()
	if err != nil {
		return 0, err
	}
	return f.Float64, nil
}
