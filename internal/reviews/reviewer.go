package reviews

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewReviewerID returns reviewer_<unix millis>_<6 random base36 chars>.
// It is a per-submission nonce, not a stable identity.
func NewReviewerID(now time.Time) string {
	return fmt.Sprintf("reviewer_%d_%s", now.UnixMilli(), randomSuffix(6))
}

func randomSuffix(n int) string {
	// the first six bytes of a v4 uuid carry no version or variant bits
	u := uuid.New()
	if n > 6 {
		n = 6
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = base36[int(u[i])%len(base36)]
	}
	return string(out)
}
