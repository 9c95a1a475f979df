package portal

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// probeFirst tries an ordered list of candidate selectors against the live
// page, giving each a short existence timeout, and returns the first one
// that matches. Heuristic selector lists accommodate markup variance across
// portal versions; keeping the per-probe timeout small keeps scanning a long
// candidate list bounded.
func probeFirst(ctx context.Context, candidates []string, perProbeTimeout time.Duration) (string, bool) {
	for _, selector := range candidates {
		probeCtx, cancel := context.WithTimeout(ctx, perProbeTimeout)
		err := chromedp.Run(probeCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
		cancel()

		if err == nil {
			return selector, true
		}
		if ctx.Err() != nil {
			// Parent context expired; no point probing further.
			return "", false
		}
	}
	return "", false
}
