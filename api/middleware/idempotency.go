package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	replayWindow        = 24 * time.Hour
	paymentReplayWindow = 7 * 24 * time.Hour

	// inFlightWindow bounds how long a crashed request can block its key.
	inFlightWindow = 2 * time.Minute
)

// ReplayStore holds idempotent responses keyed by caller scope.
type ReplayStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// replayed lists the mutating routes that demand an Idempotency-Key.
var replayed = map[string]time.Duration{
	http.MethodPost + " /api/v1/checkout":                        paymentReplayWindow,
	http.MethodPost + " /api/v1/payment/{option}":                paymentReplayWindow,
	http.MethodPost + " /api/v1/cart/coupon":                     replayWindow,
	http.MethodPost + " /api/v1/refunds":                         replayWindow,
	http.MethodPost + " /api/v1/admin/orders/refunds/grant":      replayWindow,
	http.MethodPost + " /api/v1/admin/orders/delivery":           replayWindow,
	http.MethodPost + " /api/v1/admin/orders/received":           replayWindow,
	http.MethodPost + " /api/v1/admin/refunds/{refundId}/accept": replayWindow,
}

// storedReply is either an in-flight claim (Status 0) or a finished response.
type storedReply struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (s storedReply) finished() bool { return s.Status != 0 }

// Idempotency makes the listed routes safe to retry. The first request with a
// key claims it; a retry with the same body replays the stored reply, a retry
// while the first is still running gets CONFLICT, and a different body under
// the same key gets IDEMPOTENCY_KEY_REUSED. 5xx replies release the key so the
// caller can try again. Attach it per route so the chi pattern is resolved.
func Idempotency(store ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			id := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if id == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(callerScope(r), id)
			claim := storedReply{Fingerprint: fingerprint(body)}

			claimed, err := store.SetNX(ctx, key, claim.encode(), inFlightWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(ctx, store, logg, w, key, claim.Fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			done := storedReply{
				Fingerprint: claim.Fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := store.Set(ctx, key, done.encode(), ttl); err != nil && logg != nil {
				logg.Error(ctx, "store idempotent reply", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, store ReplayStore, logg *logger.Logger, w http.ResponseWriter, key, want string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// claim expired between SETNX and GET; treat as still running.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent reply"))
		return
	}

	var prior storedReply
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent reply"))
		return
	}
	switch {
	case prior.Fingerprint != want:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case !prior.finished():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is in progress"))
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

func (s storedReply) encode() string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func replayTTL(r *http.Request) (time.Duration, bool) {
	pattern := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		pattern = rc.RoutePattern()
	}
	ttl, ok := replayed[r.Method+" "+pattern]
	return ttl, ok
}

// callerScope keeps keys from colliding across users and endpoints.
func callerScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// responseCapture tees the handler's reply so it can be stored.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
