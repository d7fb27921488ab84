package org

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("org: not found")

// Store describes persistence for branches and committees.
type Store interface {
	FindBranch(ctx context.Context, id string) (*Branch, error)
	ListBranches(ctx context.Context) ([]*Branch, error)
	FindCommittee(ctx context.Context, id string) (*Committee, error)
	ListCommittees(ctx context.Context, branchID string) ([]*Committee, error)
}
