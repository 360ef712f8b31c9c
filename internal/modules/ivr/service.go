package ivr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"weride/internal/modules/rating"
	"weride/internal/observability"
	"weride/internal/store"
	"weride/internal/types"
)

var ErrNoDriver = errors.New("ride has no driver to rate")

// Rides is the part of the ride service the follow-up actions need.
type Rides interface {
	GetRide(ctx context.Context, id types.ID) (*store.Ride, error)
	NotifyDriver(ctx context.Context, rideID types.ID, coming bool) error
	Escalate(ctx context.Context, rideID types.ID, note string) error
}

type Rater interface {
	Rate(ctx context.Context, cmd rating.RateCommand) (float64, error)
}

type Service struct {
	rides Rides
	rater Rater
	log   *slog.Logger
}

func NewService(rides Rides, rater Rater, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{rides: rides, rater: rater, log: log}
}

// Handle resolves a digit and performs its follow-up action. The response is always
// usable; a non-nil error reports a follow-up that could not be carried out.
func (s *Service) Handle(ctx context.Context, cc CallContext, digit string) (Response, error) {
	res := Resolve(cc, digit)
	observability.DigitInputsTotal.WithLabelValues(string(cc.Kind), string(res.Action)).Inc()
	s.log.Info("digit received", "ride_id", cc.RideID, "context", cc.Kind, "action", res.Action)
	if cc.RideID == "" {
		return res, nil
	}

	var err error
	switch res.Action {
	case ActionComing:
		err = s.rides.NotifyDriver(ctx, cc.RideID, true)
	case ActionMoreTime:
		err = s.rides.NotifyDriver(ctx, cc.RideID, false)
	case ActionEmergency:
		err = s.rides.Escalate(ctx, cc.RideID, fmt.Sprintf("keypad %s on safety call", digit))
	case ActionRate:
		err = s.rate(ctx, cc.RideID, res.Score)
	}
	if err != nil {
		level := slog.LevelWarn
		if res.Action == ActionEmergency {
			level = slog.LevelError
		}
		s.log.Log(ctx, level, "digit follow-up failed", "ride_id", cc.RideID, "action", res.Action, "err", err)
		return res, err
	}
	return res, nil
}

// rate records the passenger's keypad rating of the driver.
func (s *Service) rate(ctx context.Context, rideID types.ID, score int) error {
	r, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil {
		return ErrNoDriver
	}
	_, err = s.rater.Rate(ctx, rating.RateCommand{
		RideID:  rideID,
		RaterID: r.PassengerID,
		RatedID: *r.DriverID,
		Score:   score,
		Comment: "keypad feedback",
	})
	if errors.Is(err, rating.ErrAlreadyRated) {
		s.log.Info("keypad rating ignored, ride already rated", "ride_id", rideID)
		return nil
	}
	return err
}
