package authapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// checkLoginIPThrottle blocks an address once its recent login failures reach
// LoginIPMax within LoginIPWindow.
func (h *Handler) checkLoginIPThrottle(ctx context.Context, ip net.IP, now time.Time) (bool, time.Duration, error) {
	if ip == nil || h.auditor == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	count, err := h.auditor.CountSince(ctx, actionLoginFailed, ip, now.Add(-h.cfg.LoginIPWindow))
	if err != nil {
		return false, 0, err
	}
	if count >= h.cfg.LoginIPMax {
		return true, h.cfg.LoginIPWindow, nil
	}
	return false, 0, nil
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
