package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const clientBucketIdleTimeout = 3 * time.Minute

// clientBuckets holds one token bucket per caller IP. Buckets idle past
// clientBucketIdleTimeout are dropped by a background sweep.
type clientBuckets struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     rate.Limit
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientBuckets(rps float64, burst int) *clientBuckets {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	buckets := &clientBuckets{
		buckets: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go buckets.sweep()
	return buckets
}

func (b *clientBuckets) allow(ip string) bool {
	b.mu.Lock()
	bucket, ok := b.buckets[ip]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(b.rps, b.burst)}
		b.buckets[ip] = bucket
	}
	bucket.lastSeen = time.Now()
	b.mu.Unlock()

	return bucket.limiter.Allow()
}

func (b *clientBuckets) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		b.mu.Lock()
		for ip, bucket := range b.buckets {
			if time.Since(bucket.lastSeen) > clientBucketIdleTimeout {
				delete(b.buckets, ip)
			}
		}
		b.mu.Unlock()
	}
}

func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	buckets := newClientBuckets(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !buckets.allow(callerIP(r.RemoteAddr)) {
				w.Header().Set("Retry-After", "1")
				writeErrorEnvelope(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
