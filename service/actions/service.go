package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/blinks/service/metrics"
	"github.com/brojonat/blinks/service/txbuilder"
)

// Service dispatches build requests to the adapter for their action and records the outcome.
type Service struct {
	Donate  *Donate
	Buy     *Buy
	Swap    *Swap
	metrics *metrics.Metrics
}

// NewService bundles the adapters. Any adapter may be nil to disable that action.
func NewService(donate *Donate, buy *Buy, swap *Swap, m *metrics.Metrics) *Service {
	return &Service{Donate: donate, Buy: buy, Swap: swap, metrics: m}
}

// Build builds the unsigned transaction described by req.
func (s *Service) Build(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.dispatch(ctx, req)
	if s.metrics != nil {
		instructions := 0
		if res != nil {
			instructions = res.Instructions
		}
		s.metrics.RecordTransactionBuilt(string(req.Action), txbuilder.Kind(err), instructions, time.Since(start).Seconds())
	}
	return res, err
}

func (s *Service) dispatch(ctx context.Context, req Request) (*Result, error) {
	switch {
	case req.Action == KindDonate && s.Donate != nil:
		return s.Donate.Build(ctx, req.Account, req.Amount)
	case req.Action == KindBuy && s.Buy != nil:
		return s.Buy.Build(ctx, req.Account, req.Target, req.Amount)
	case req.Action == KindSwap && s.Swap != nil:
		return s.Swap.Build(ctx, req.Account, req.Target, req.Amount)
	default:
		return nil, fmt.Errorf("%w: %q", txbuilder.ErrUnsupportedAction, req.Action)
	}
}
