package repositories

import (
	"context"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// WalletRepository reads the tracked wallet list. Wallet CRUD belongs to the
// storage collaborator; the pipeline only reads.
type WalletRepository interface {
	// GetAll retrieves every tracked wallet
	GetAll(ctx context.Context) ([]entities.Wallet, error)

	// GetByID retrieves a single wallet, nil if not found
	GetByID(ctx context.Context, id int64) (*entities.Wallet, error)
}
