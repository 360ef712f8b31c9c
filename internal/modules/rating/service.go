// README: Rating service records immutable ratings and folds them into the rated user's rolling average.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weride/internal/store"
	"weride/internal/types"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrNotRateable  = errors.New("ride cannot be rated")
	ErrAlreadyRated = errors.New("ride already rated by this user")
	ErrPersistence  = errors.New("persistence failure")
)

type RateCommand struct {
	RideID  types.ID
	RaterID types.ID
	RatedID types.ID
	Score   int
	Comment string
}

type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Rate stores one rating for a completed ride between its two parties and returns
// the rated user's new rolling rating.
func (s *Service) Rate(ctx context.Context, cmd RateCommand) (float64, error) {
	if cmd.Score < 1 || cmd.Score > 5 {
		return 0, fmt.Errorf("%w: score must be between 1 and 5", ErrBadRequest)
	}
	if cmd.RaterID == "" || cmd.RatedID == "" || cmd.RaterID == cmd.RatedID {
		return 0, fmt.Errorf("%w: rater and rated must be two different users", ErrBadRequest)
	}
	var rolling float64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if r.Status != store.RideStatusCompleted || r.DriverID == nil {
			return fmt.Errorf("%w: ride is %s", ErrNotRateable, r.Status)
		}
		if !parties(r, cmd.RaterID, cmd.RatedID) {
			return fmt.Errorf("%w: users are not the parties of this ride", ErrNotRateable)
		}
		if _, err := tx.GetRatingByRater(ctx, r.ID, cmd.RaterID); err == nil {
			return ErrAlreadyRated
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.CreateRating(ctx, &store.Rating{
			ID:        types.NewID(),
			RideID:    r.ID,
			RaterID:   cmd.RaterID,
			RatedID:   cmd.RatedID,
			Score:     cmd.Score,
			Comment:   strings.TrimSpace(cmd.Comment),
			CreatedAt: s.now(),
		}); errors.Is(err, store.ErrConflict) {
			return ErrAlreadyRated
		} else if err != nil {
			return err
		}

		u, err := tx.LockUser(ctx, cmd.RatedID)
		if err != nil {
			return err
		}
		u.Rating = Fold(u.Rating, u.RatingCount, cmd.Score)
		u.RatingCount++
		rolling = u.Rating
		return tx.UpdateUser(ctx, u)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrNotRateable), errors.Is(err, ErrAlreadyRated):
		return 0, err
	case errors.Is(err, store.ErrNotFound):
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		s.log.Error("rating failed", "ride_id", cmd.RideID, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Info("ride rated", "ride_id", cmd.RideID, "rated_id", cmd.RatedID, "score", cmd.Score, "rating", rolling)
	return rolling, nil
}

// Fold adds score to a running mean over count ratings. With no ratings the mean
// is the score itself, so the default rating is not counted as a vote.
func Fold(mean float64, count, score int) float64 {
	if count <= 0 {
		return float64(score)
	}
	return (mean*float64(count) + float64(score)) / float64(count+1)
}

func parties(r *store.Ride, a, b types.ID) bool {
	d := *r.DriverID
	return (a == r.PassengerID && b == d) || (a == d && b == r.PassengerID)
}
