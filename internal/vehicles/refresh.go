package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"bluelink-bridge/internal/eventing"
	"bluelink-bridge/internal/observability/metrics"
)

// Refresh strategies.
const (
	StrategyCached = "cached"
	StrategyForce  = "force"
	StrategySmart  = "smart"
)

const (
	minSmartMaxAge = 1 * time.Second
	maxSmartMaxAge = 604800 * time.Second
)

// ErrInvalidRefresh marks a malformed refresh request.
var ErrInvalidRefresh = errors.New("vehicles: invalid refresh request")

// RefreshRequest is a parsed data refresh request.
type RefreshRequest struct {
	Strategy string
	MaxAge   time.Duration
}

// ParseRefreshRequest parses the payload of a refresh command:
// "cached", "force", or "smart:<seconds>".
func ParseRefreshRequest(payload string) (RefreshRequest, error) {
	payload = strings.TrimSpace(strings.ToLower(payload))
	switch {
	case payload == "" || payload == StrategyCached:
		return RefreshRequest{Strategy: StrategyCached}, nil
	case payload == StrategyForce:
		return RefreshRequest{Strategy: StrategyForce}, nil
	case strings.HasPrefix(payload, StrategySmart+":"):
		secs, err := strconv.Atoi(strings.TrimPrefix(payload, StrategySmart+":"))
		if err != nil {
			return RefreshRequest{}, fmt.Errorf("%w: bad smart max age %q", ErrInvalidRefresh, payload)
		}
		maxAge := time.Duration(secs) * time.Second
		if maxAge < minSmartMaxAge || maxAge > maxSmartMaxAge {
			return RefreshRequest{}, fmt.Errorf("%w: smart max age %ds out of range", ErrInvalidRefresh, secs)
		}
		return RefreshRequest{Strategy: StrategySmart, MaxAge: maxAge}, nil
	default:
		return RefreshRequest{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidRefresh, payload)
	}
}

// StatusReader is the remote read surface the refresh service needs.
type StatusReader interface {
	VehicleStatus(ctx context.Context, vehicleID string) (json.RawMessage, error)
	RequestStatusRefresh(ctx context.Context, vehicleID string) error
}

// RefreshService serves vehicle data reads. Cached reads return the
// vendor's cached document; force reads wake the vehicle first; smart
// reads wake the vehicle only when the cached document is older than
// the requested max age.
type RefreshService struct {
	reader StatusReader
	bus    eventing.EventBus
	now    func() time.Time
	logger *log.Logger

	mu          sync.Mutex
	lastFetched map[string]time.Time
}

// NewRefreshService constructs a refresh service.
func NewRefreshService(reader StatusReader, bus eventing.EventBus, logger *log.Logger) (*RefreshService, error) {
	if reader == nil {
		return nil, errors.New("vehicles: nil status reader")
	}
	if bus == nil {
		return nil, errors.New("vehicles: nil event bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RefreshService{
		reader:      reader,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
		lastFetched: make(map[string]time.Time),
	}, nil
}

// Refresh executes a refresh request and publishes the outcome.
func (s *RefreshService) Refresh(ctx context.Context, vehicleID string, req RefreshRequest) error {
	start := s.now()

	wake := false
	switch req.Strategy {
	case StrategyForce:
		wake = true
	case StrategySmart:
		wake = s.ageOf(vehicleID) > req.MaxAge
	}

	if wake {
		if err := s.reader.RequestStatusRefresh(ctx, vehicleID); err != nil {
			s.fail(ctx, vehicleID, req.Strategy, start, err)
			return err
		}
	}

	raw, err := s.reader.VehicleStatus(ctx, vehicleID)
	if err != nil {
		s.fail(ctx, vehicleID, req.Strategy, start, err)
		return err
	}
	data, err := ParseVehicleData(vehicleID, raw, s.now())
	if err != nil {
		s.fail(ctx, vehicleID, req.Strategy, start, err)
		return fmt.Errorf("vehicles: parse status for %s: %w", vehicleID, err)
	}

	s.mu.Lock()
	s.lastFetched[vehicleID] = s.now()
	s.mu.Unlock()

	metrics.ObserveDataRefresh(req.Strategy, "success", s.now().Sub(start))
	event := VehicleDataRefreshed{
		VehicleID:  vehicleID,
		Strategy:   req.Strategy,
		Data:       data,
		OccurredAt: s.now(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("publish refreshed data for %s: %v", vehicleID, err)
	}
	return nil
}

// ForceRefresh wakes the vehicle and republishes its state. Used after
// a confirmed command so downstream consumers see the new state.
func (s *RefreshService) ForceRefresh(ctx context.Context, vehicleID string) error {
	return s.Refresh(ctx, vehicleID, RefreshRequest{Strategy: StrategyForce})
}

func (s *RefreshService) ageOf(vehicleID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	fetched, ok := s.lastFetched[vehicleID]
	if !ok {
		return maxSmartMaxAge + time.Second
	}
	return s.now().Sub(fetched)
}

func (s *RefreshService) fail(ctx context.Context, vehicleID, strategy string, start time.Time, cause error) {
	metrics.ObserveDataRefresh(strategy, "failure", s.now().Sub(start))
	s.logger.Printf("data refresh (%s) for %s failed: %v", strategy, vehicleID, cause)
	event := RefreshFailed{
		VehicleID:  vehicleID,
		Strategy:   strategy,
		Error:      cause.Error(),
		OccurredAt: s.now(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("publish refresh failure for %s: %v", vehicleID, err)
	}
}
