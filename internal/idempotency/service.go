// Package idempotency makes client-keyed requests safe to retry: a completed
// request replays its stored response instead of running again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/store"
)

// DefaultTTL is how long a key is remembered.
const DefaultTTL = 24 * time.Hour

var (
	ErrInProgress = errors.New("request is already being processed")
	ErrConflict   = errors.New("idempotency key conflict: same key used for different request")
)

// RetryableResponse is returned by a handler whose response should reach the
// caller but must not be replayed: the record is saved as failed so a retry
// with the same key runs again.
type RetryableResponse struct {
	Response any
}

func (r *RetryableResponse) Error() string {
	return "request did not complete"
}

// Retryable wraps a response that must not be replayed.
func Retryable(response any) error {
	return &RetryableResponse{Response: response}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	fieldRequestHash = "request_hash"
	fieldResponse    = "response"
	fieldStatus      = "status"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
	fieldExpiresAt   = "expires_at"
)

type Record struct {
	Key         string
	RequestHash string
	Response    string
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Service tracks idempotency keys in a store. The pending marker is a plain
// put, so two first attempts racing on the same key can both run.
type Service struct {
	store store.Store
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

func New(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, ttl: DefaultTTL, log: log, now: time.Now}
}

// GenerateKey scopes a client supplied key to an action.
func GenerateKey(clientKey, action string) string {
	hash := sha256.Sum256([]byte(action + ":" + clientKey))
	return hex.EncodeToString(hash[:])
}

// GenerateRequestHash fingerprints a request body for comparison on retry.
func GenerateRequestHash(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// Check returns the live record for key, or nil when there is none or it has
// expired.
func (s *Service) Check(ctx context.Context, key string) (*Record, error) {
	rec, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	record := Record{
		Key:         key,
		RequestHash: rec[fieldRequestHash],
		Response:    rec[fieldResponse],
		Status:      Status(rec[fieldStatus]),
	}
	if record.CreatedAt, err = rec.Time(fieldCreatedAt); err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}
	if record.ExpiresAt, err = rec.Time(fieldExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	if !s.now().Before(record.ExpiresAt) {
		return nil, nil
	}
	return &record, nil
}

func (s *Service) save(ctx context.Context, r Record) error {
	rec := store.Record{
		fieldRequestHash: r.RequestHash,
		fieldStatus:      string(r.Status),
		fieldCreatedAt:   store.FormatTime(r.CreatedAt),
		fieldUpdatedAt:   store.FormatTime(s.now()),
		fieldExpiresAt:   store.FormatTime(r.ExpiresAt),
		store.TTLField:   store.FormatTTL(r.ExpiresAt),
	}
	if r.Response != "" {
		rec[fieldResponse] = r.Response
	}
	return s.store.Put(ctx, r.Key, rec)
}

// finishRetryable returns the response to the caller and leaves the key open
// for another attempt.
func (s *Service) finishRetryable(ctx context.Context, log zerolog.Logger, record Record, response any) (json.RawMessage, error) {
	record.Status = StatusFailed
	responseJSON, err := json.Marshal(response)
	if err != nil {
		record.Response = "error: failed to marshal response"
	} else {
		record.Response = string(responseJSON)
	}
	if uerr := s.save(ctx, record); uerr != nil {
		log.Warn().Err(uerr).Msg("failed to update idempotency record")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return responseJSON, nil
}

// Process runs handler at most once per (clientKey, action) while the key is
// live and returns its JSON encoded response. A retry with the same body
// replays the stored response; a different body is ErrConflict; a retry
// while the first attempt is still running is ErrInProgress. Failed attempts,
// including those whose handler returned Retryable, may be retried.
func (s *Service) Process(
	ctx context.Context,
	clientKey, action string,
	body []byte,
	handler func(context.Context) (any, error),
) (json.RawMessage, error) {
	key := GenerateKey(clientKey, action)
	requestHash := GenerateRequestHash(body)
	log := s.log.With().Str("idempotency_key", key).Logger()

	existing, err := s.Check(ctx, key)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.RequestHash != requestHash {
			return nil, ErrConflict
		}
		switch existing.Status {
		case StatusCompleted:
			log.Info().Msg("replaying stored response")
			return json.RawMessage(existing.Response), nil
		case StatusPending:
			return nil, ErrInProgress
		}
	}

	now := s.now()
	record := Record{
		Key:         key,
		RequestHash: requestHash,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store idempotency record: %w", err)
	}

	response, err := handler(ctx)
	var retryable *RetryableResponse
	if errors.As(err, &retryable) {
		return s.finishRetryable(ctx, log, record, retryable.Response)
	}
	if err != nil {
		record.Status = StatusFailed
		record.Response = fmt.Sprintf("error: %v", err)
		if uerr := s.save(ctx, record); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to update idempotency record")
		}
		return nil, err
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		record.Status = StatusFailed
		record.Response = "error: failed to marshal response"
		if uerr := s.save(ctx, record); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to update idempotency record")
		}
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	record.Status = StatusCompleted
	record.Response = string(responseJSON)
	if err := s.save(ctx, record); err != nil {
		// the work is done; a lost record only means a retry runs again
		log.Warn().Err(err).Msg("failed to update idempotency record")
	}

	return responseJSON, nil
}
