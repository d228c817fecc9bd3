// Package cache persists generated icebreakers, encrypted and with a fixed
// lifetime, keyed by profile fingerprint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/models"
	"github.com/outreachbackend/internal/store"
)

// DefaultTTL is how long a generated icebreaker stays reusable.
const DefaultTTL = 24 * time.Hour

// record field names
const (
	fieldIcebreaker  = "icebreaker"
	fieldProfileData = "profile_data"
	fieldTokensUsed  = "tokens_used"
	fieldCost        = "cost"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

// Cipher is the at-rest encryption capability.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// Icebreakers reads and writes cached icebreakers. Faults never reach the
// caller: reads degrade to a miss and writes to a no-op, both logged.
type Icebreakers struct {
	store  store.Store
	cipher Cipher
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func New(s store.Store, c Cipher, ttl time.Duration, log zerolog.Logger) *Icebreakers {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Icebreakers{store: s, cipher: c, ttl: ttl, log: log, now: time.Now}
}

// Lookup returns the cached icebreaker for fingerprint, or false when there
// is none, it has expired, or it cannot be read back.
func (c *Icebreakers) Lookup(ctx context.Context, fingerprint string) (models.IcebreakerResult, bool) {
	rec, err := c.store.Get(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return models.IcebreakerResult{}, false
	}
	if err != nil {
		c.log.Error().Err(err).Str("profile_id", fingerprint).Msg("error retrieving cached icebreaker")
		return models.IcebreakerResult{}, false
	}

	cached, err := decodeRecord(fingerprint, rec)
	if err != nil {
		c.log.Error().Err(err).Str("profile_id", fingerprint).Msg("corrupt cached icebreaker")
		return models.IcebreakerResult{}, false
	}

	// stale records may outlive their ttl attribute until the store evicts them
	if !c.now().Before(cached.ExpiresAt) {
		return models.IcebreakerResult{}, false
	}

	text, err := c.cipher.Decrypt(cached.Icebreaker)
	if err != nil {
		c.log.Error().Err(err).Str("profile_id", fingerprint).Msg("error decrypting cached icebreaker")
		return models.IcebreakerResult{}, false
	}

	return models.IcebreakerResult{
		ProfileID:   fingerprint,
		Icebreaker:  string(text),
		TokensUsed:  cached.TokensUsed,
		Cost:        cached.Cost,
		GeneratedAt: cached.CreatedAt,
		Cached:      true,
	}, true
}

// Store encrypts and writes an icebreaker, replacing any previous record for
// the fingerprint. It expires at generatedAt + TTL.
func (c *Icebreakers) Store(ctx context.Context, fingerprint, icebreaker string, profile models.Profile, tokensUsed int, cost float64, generatedAt time.Time) {
	rec, err := c.encode(icebreaker, profile, tokensUsed, cost, generatedAt)
	if err != nil {
		c.log.Error().Err(err).Str("profile_id", fingerprint).Msg("error encrypting icebreaker")
		return
	}
	if err := c.store.Put(ctx, fingerprint, rec); err != nil {
		c.log.Error().Err(err).Str("profile_id", fingerprint).Msg("error caching icebreaker")
		return
	}
	c.log.Info().Str("profile_id", fingerprint).Msg("cached icebreaker")
}

// encode seals the text and the profile snapshot independently.
func (c *Icebreakers) encode(icebreaker string, profile models.Profile, tokensUsed int, cost float64, generatedAt time.Time) (store.Record, error) {
	encText, err := c.cipher.Encrypt([]byte(icebreaker))
	if err != nil {
		return nil, fmt.Errorf("icebreaker: %w", err)
	}

	snapshot, err := json.Marshal(profile.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("profile snapshot: %w", err)
	}
	encProfile, err := c.cipher.Encrypt(snapshot)
	if err != nil {
		return nil, fmt.Errorf("profile snapshot: %w", err)
	}

	expiresAt := generatedAt.Add(c.ttl)
	return store.Record{
		fieldIcebreaker:  encText,
		fieldProfileData: encProfile,
		fieldTokensUsed:  store.FormatInt(tokensUsed),
		fieldCost:        store.FormatFloat(cost),
		fieldCreatedAt:   store.FormatTime(generatedAt),
		fieldExpiresAt:   store.FormatTime(expiresAt),
		store.TTLField:   store.FormatTTL(expiresAt),
	}, nil
}

func decodeRecord(fingerprint string, rec store.Record) (models.CachedIcebreaker, error) {
	tokens, err := rec.Int(fieldTokensUsed)
	if err != nil {
		return models.CachedIcebreaker{}, fmt.Errorf("tokens_used: %w", err)
	}
	cost, err := rec.Float(fieldCost)
	if err != nil {
		return models.CachedIcebreaker{}, fmt.Errorf("cost: %w", err)
	}
	createdAt, err := rec.Time(fieldCreatedAt)
	if err != nil {
		return models.CachedIcebreaker{}, fmt.Errorf("created_at: %w", err)
	}
	expiresAt, err := rec.Time(fieldExpiresAt)
	if err != nil {
		return models.CachedIcebreaker{}, fmt.Errorf("expires_at: %w", err)
	}

	return models.CachedIcebreaker{
		ProfileID:   fingerprint,
		Icebreaker:  rec[fieldIcebreaker],
		ProfileData: rec[fieldProfileData],
		TokensUsed:  tokens,
		Cost:        cost,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}
