package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/premium-access/internal/http/response"
)

// KeyFunc выбирает ключ, по которому считается лимит.
type KeyFunc func(r *http.Request) string

// KeyByIP ключ по адресу клиента.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyByPrincipal ключ по субъекту; анонимные запросы считаются по адресу.
func KeyByPrincipal(r *http.Request) string {
	if p := PrincipalFrom(r.Context()); p.Valid() {
		return "principal:" + p.ID
	}
	return "ip:" + KeyByIP(r)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter хранит отдельный token bucket на каждый ключ.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
	now      func() time.Time
}

// NewLimiter создаёт Limiter. Ключи без запросов дольше idle удаляются.
func NewLimiter(rps float64, burst int, idle time.Duration) *Limiter {
	return &Limiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли пропустить запрос с ключом key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimitMiddleware отвечает 429, когда ключ запроса исчерпал лимит.
func RateLimitMiddleware(limiter *Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !limiter.Allow(k) {
				log.Warn("too many requests", slog.String("key", k), slog.String("path", r.URL.Path))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
