package ports

import (
	"context"

	"github.com/alejandrodnm/profitflip/internal/domain"
)

// Presenter shows the current game view to the user.
// In the console implementation it prints the round window and bet history.
type Presenter interface {
	Render(ctx context.Context, view domain.View) error
}
