package driven

import (
	"context"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// VisionService performs the external calls made on behalf of dispatched
// tasks. Every method takes the API key to use, since the Dispatcher decides
// per call which credential carries it.
//
// Errors wrap domain.ErrRateLimited (via *domain.RateLimitError) when the API
// rejected the call for rate reasons, so the caller can back the key off.
type VisionService interface {
	// RankFrames returns the file names, among frames, that match query.
	// Names are returned as the API wrote them; callers map them back to paths.
	RankFrames(ctx context.Context, apiKey, query string, frames []domain.FrameText) ([]string, error)

	// JudgeFrame reports whether the image at imagePath matches query.
	JudgeFrame(ctx context.Context, apiKey, imagePath, query string) (bool, error)

	// DescribeFrame returns a textual description of the image at imagePath.
	DescribeFrame(ctx context.Context, apiKey, imagePath string) (string, error)

	// ModelName returns the names of the models in use, for display.
	ModelName() string
}
