package ports

import (
	"context"

	"github.com/ghalamif/bearingsim/internal/domain"
)

type Archive interface {
	Record(ctx context.Context, s domain.Summary) error
	Name() string
}
