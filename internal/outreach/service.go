// Package outreach orchestrates icebreaker generation, delivery and the daily
// quota.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/cache"
	"github.com/outreachbackend/internal/delivery"
	"github.com/outreachbackend/internal/identity"
	"github.com/outreachbackend/internal/llm"
	"github.com/outreachbackend/internal/models"
	"github.com/outreachbackend/internal/ratelimit"
	"github.com/outreachbackend/internal/telemetry"
)

var (
	ErrGenerationFailed = errors.New("icebreaker generation failed")
	ErrDeliveryFailed   = errors.New("message delivery failed")
)

// MsgQuotaExceeded is the error text of a quota decline.
const MsgQuotaExceeded = "Daily message limit exceeded"

// Settings are the tunables of the orchestrator.
type Settings struct {
	Pricing             llm.Pricing
	AvgTokensPerMessage int
	TargetCostPerLead   float64
	MaxOutputTokens     int
	Temperature         float32
}

// Service is safe for concurrent use. It holds no mutable state; the store
// behind the cache and the limiter is the only source of truth.
type Service struct {
	cache    *cache.Icebreakers
	limiter  *ratelimit.Limiter
	provider llm.Provider
	sender   delivery.Sender
	sink     telemetry.Sink
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

func New(
	c *cache.Icebreakers,
	limiter *ratelimit.Limiter,
	provider llm.Provider,
	sender delivery.Sender,
	sink telemetry.Sink,
	settings Settings,
	log zerolog.Logger,
) *Service {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Service{
		cache:    c,
		limiter:  limiter,
		provider: provider,
		sender:   sender,
		sink:     sink,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// GenerateIcebreaker returns a cached icebreaker for the profile when one is
// live, otherwise asks the provider for a new one and caches it. A cache hit
// never touches the daily quota.
func (s *Service) GenerateIcebreaker(ctx context.Context, profile models.Profile) (models.IcebreakerResult, error) {
	profileID := identity.Fingerprint(profile)
	log := s.log.With().Str("profile_id", profileID).Logger()

	if hit, ok := s.cache.Lookup(ctx, profileID); ok {
		log.Info().Msg("using cached icebreaker")
		s.sink.Record(ctx, telemetry.EventCacheHit, profileID, telemetry.Attrs{
			"profile_name": profile.Name,
		})
		return hit, nil
	}

	completion, err := s.provider.Complete(ctx, BuildPrompt(profile), s.settings.MaxOutputTokens, s.settings.Temperature)
	if err != nil {
		log.Error().Err(err).Msg("error generating icebreaker")
		s.sink.Record(ctx, telemetry.EventGenerationError, profileID, telemetry.Attrs{
			"error": err.Error(),
		})
		return models.IcebreakerResult{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	result := models.IcebreakerResult{
		ProfileID:   profileID,
		Icebreaker:  completion.Text,
		TokensUsed:  completion.TotalTokens,
		Cost:        s.settings.Pricing.Cost(completion.TotalTokens),
		GeneratedAt: s.now().UTC(),
		Cached:      false,
	}

	s.cache.Store(ctx, profileID, result.Icebreaker, profile, result.TokensUsed, result.Cost, result.GeneratedAt)

	log.Info().Int("tokens_used", result.TokensUsed).Float64("cost", result.Cost).Msg("generated new icebreaker")
	s.sink.Record(ctx, telemetry.EventGenerated, profileID, telemetry.Attrs{
		"profile_name": profile.Name,
		"tokens_used":  result.TokensUsed,
		"cost":         result.Cost,
	})

	return result, nil
}

// ProcessOutreach runs one admit, generate, deliver, commit cycle. Every
// result is reported through the outcome; quota is consumed only when the
// message was delivered.
func (s *Service) ProcessOutreach(ctx context.Context, profile models.Profile) models.OutreachOutcome {
	decision, err := s.limiter.Admit(ctx)
	if err != nil {
		s.sink.Record(ctx, telemetry.EventOutreachError, "unknown", telemetry.Attrs{"error": err.Error()})
		return models.OutreachOutcome{
			Reason: models.ReasonAdmissionUnavailable,
			Error:  err.Error(),
		}
	}
	if !decision.Allowed {
		s.sink.Record(ctx, telemetry.EventQuotaExceeded, "unknown", telemetry.Attrs{
			"limit":         decision.Limit,
			"current_count": decision.Count,
		})
		return models.OutreachOutcome{
			Reason:      models.ReasonQuotaExceeded,
			Error:       MsgQuotaExceeded,
			QuotaStatus: &models.QuotaStatus{Limit: decision.Limit, CurrentCount: decision.Count},
		}
	}

	icebreaker, err := s.GenerateIcebreaker(ctx, profile)
	if err != nil {
		return s.failed(ctx, models.ReasonGenerationFailed, "unknown", err)
	}

	ack, err := s.sender.Send(ctx, profile, icebreaker.Icebreaker)
	if err != nil {
		return s.failed(ctx, models.ReasonDeliveryFailed, icebreaker.ProfileID, fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
	}
	s.sink.Record(ctx, telemetry.EventMessageSent, icebreaker.ProfileID, telemetry.Attrs{
		"recipient":          profile.Name,
		"message_preview":    delivery.Preview(icebreaker.Icebreaker),
		"unipile_message_id": ack.MessageID,
	})

	count, err := s.limiter.Commit(ctx)
	if err != nil {
		// the message is out; report it and fall back to the admitted count
		s.log.Error().Err(err).Str("profile_id", icebreaker.ProfileID).Msg("error updating rate limit")
		count = decision.Count + 1
	}

	s.sink.Record(ctx, telemetry.EventOutreachCompleted, icebreaker.ProfileID, telemetry.Attrs{
		"profile_name":  profile.Name,
		"cost":          icebreaker.Cost,
		"cached":        icebreaker.Cached,
		"message_count": count,
	})

	return models.OutreachOutcome{
		Success: true,
		OutreachResult: &models.OutreachResult{
			ProfileID:         icebreaker.ProfileID,
			Icebreaker:        icebreaker.Icebreaker,
			Cost:              icebreaker.Cost,
			Cached:            icebreaker.Cached,
			TokensUsed:        icebreaker.TokensUsed,
			UnipileResponse:   ack,
			MessageCount:      count,
			RemainingMessages: s.limiter.Limit() - count,
		},
	}
}

func (s *Service) failed(ctx context.Context, reason models.FailureReason, profileID string, err error) models.OutreachOutcome {
	s.log.Error().Err(err).Str("reason", string(reason)).Msg("error in outreach process")
	s.sink.Record(ctx, telemetry.EventOutreachError, profileID, telemetry.Attrs{"error": err.Error()})
	return models.OutreachOutcome{Reason: reason, Error: err.Error()}
}

// GetDailyStats reports today's usage and estimated spend.
func (s *Service) GetDailyStats(ctx context.Context) (models.DailyStats, error) {
	count, err := s.limiter.Count(ctx)
	if err != nil {
		return models.DailyStats{}, fmt.Errorf("failed to get daily stats: %w", err)
	}

	estimated := s.settings.Pricing.EstimateCost(count, s.settings.AvgTokensPerMessage)
	return models.DailyStats{
		Date:              s.limiter.Today(),
		MessagesSent:      count,
		RemainingMessages: s.limiter.Limit() - count,
		EstimatedCost:     estimated,
		CostPerLead:       estimated / float64(max(count, 1)),
		// compares against the whole day's target, not per lead
		WithinBudget: estimated <= s.settings.TargetCostPerLead*float64(count),
	}, nil
}
