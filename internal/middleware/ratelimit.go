package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/logging"
	"github.com/GoliathLabs/applica/internal/ratelimit"
	"github.com/GoliathLabs/applica/internal/telemetry"
)

// RateLimit counts requests matching one of rules against limiter and
// answers 429 once the client's window is exhausted. Other requests bypass it.
func RateLimit(limiter *ratelimit.Limiter, rules []ratelimit.Rule, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || len(rules) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(rules, r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			client := ratelimit.ClientKey(r)
			d := limiter.Allow(ratelimit.CounterKey(rule, client))
			metrics.RateLimitDecision(r.Context(), rule.String(), d.Allowed)
			if !d.Allowed {
				logging.FromContext(r.Context()).WithFields(logrus.Fields{
					logging.FieldComponent: "ratelimit",
					"route":                rule.String(),
					"client":               client,
					"count":                d.Count,
				}).Warn("rate limit exceeded")
				apierr.Write(w, r, apierr.RateLimited(d.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchRule returns the first rule matching r.
func matchRule(rules []ratelimit.Rule, r *http.Request) (ratelimit.Rule, bool) {
	for _, rule := range rules {
		if rule.Match(r) {
			return rule, true
		}
	}
	return ratelimit.Rule{}, false
}
