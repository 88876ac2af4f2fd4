package bot

import (
	"context"

	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/oracle"
)

// Oracle is the external reasoning service the bot depends on
type Oracle interface {
	ExtractCandidates(ctx context.Context, frame []byte, mimeType string) (*oracle.Extraction, error)
	SearchCandidates(ctx context.Context) (*oracle.Extraction, error)
	VerifyOutcome(ctx context.Context, p models.Position) (*models.Outcome, error)
}
