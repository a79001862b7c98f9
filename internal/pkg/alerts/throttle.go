package alerts

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/cache"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/mail"
)

const DefaultCooldown = time.Hour

// Store remembers when an alert key was last sent.
type Store interface {
	LastSent(key string) (time.Time, bool)
	MarkSent(key string, at time.Time)
}

// MemoryStore keeps cooldown state for the lifetime of the process.
// Two concurrent requests may still both pass the cooldown check and
// double-send; alerting is best-effort so that is accepted.
type MemoryStore struct {
	mu   sync.Mutex
	sent map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sent: make(map[string]time.Time)}
}

func (s *MemoryStore) LastSent(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.sent[key]
	return at, ok
}

func (s *MemoryStore) MarkSent(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = at
}

// RedisStore shares cooldown state across instances via the cache server.
type RedisStore struct {
	Prefix string
}

func NewRedisStore() *RedisStore {
	return &RedisStore{Prefix: "alerts:last_sent:"}
}

func (s *RedisStore) LastSent(key string) (time.Time, bool) {
	val, err := cache.Get(s.Prefix + key)
	if err != nil {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

func (s *RedisStore) MarkSent(key string, at time.Time) {
	// Keep the key around a bit longer than any sane cooldown.
	if err := cache.Set(s.Prefix+key, strconv.FormatInt(at.Unix(), 10), 48*time.Hour); err != nil {
		log.Warnf("[Alerts] failed to persist cooldown for %s: %v", key, err)
	}
}

// SendFunc dispatches a single alert email.
type SendFunc func(to, subject, body string) error

// Throttle dedupes outbound operator notifications within a cooldown window.
type Throttle struct {
	store      Store
	cooldown   time.Duration
	recipients []string
	send       SendFunc
	now        func() time.Time
}

// NewThrottle builds a throttle. A zero cooldown falls back to one hour, a
// nil send function falls back to the SMTP mailer.
func NewThrottle(store Store, cooldown time.Duration, recipients []string, send SendFunc) *Throttle {
	if store == nil {
		store = NewMemoryStore()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if send == nil {
		send = mail.SendMail
	}
	return &Throttle{
		store:      store,
		cooldown:   cooldown,
		recipients: recipients,
		send:       send,
		now:        time.Now,
	}
}

// NewThrottleFromEnv builds a throttle from operator configuration.
func NewThrottleFromEnv(store Store) *Throttle {
	cooldown := DefaultCooldown
	if minutes, err := strconv.Atoi(env.GetEnv("ALERT_COOLDOWN_MINUTES", "")); err == nil && minutes > 0 {
		cooldown = time.Duration(minutes) * time.Minute
	}
	return NewThrottle(store, cooldown, ParseRecipients(env.GetEnv("ALERT_EMAILS", "")), nil)
}

// ParseRecipients splits a comma-separated recipient list, trimming entries
// and dropping empty ones.
func ParseRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Notify sends an alert unless the key fired within the cooldown window or
// no recipients are configured. The timestamp is recorded only when at least
// one send succeeded, so a transient SMTP failure does not eat the window.
// Send failures are logged and swallowed; alerting must never break the
// request that triggered it. Reports whether an alert went out.
func (t *Throttle) Notify(key, subject, body string) bool {
	if len(t.recipients) == 0 {
		return false
	}

	now := t.now()
	if last, ok := t.store.LastSent(key); ok && now.Sub(last) < t.cooldown {
		return false
	}

	sent := false
	for _, rcpt := range t.recipients {
		if err := t.send(rcpt, subject, body); err != nil {
			log.Errorf("[Alerts] failed to send %q to %s: %v", key, rcpt, err)
			continue
		}
		sent = true
	}

	if sent {
		t.store.MarkSent(key, now)
	}
	return sent
}
