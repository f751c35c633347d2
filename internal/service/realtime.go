package service

import (
	"context"
	"time"

	"github.com/mediaforge/media-pipeline/internal/auth"
)

// IssueSubscriptionToken returns a token scoping which realtime channels the
// caller may subscribe to. Realtime delivery is a latency optimization only;
// everything published is recoverable through the job and asset queries.
func (s *ServiceHandler) IssueSubscriptionToken(_ context.Context, user auth.User) (string, []string, time.Time, error) {
	return s.capability.IssueSubscriptionToken(user)
}
