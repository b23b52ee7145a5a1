package accessgrants

import (
	"context"
	"time"

	"child-development-records/internal/platform/logger"
)

// Sweeper corre ExpireStale periódicamente. Es opcional: con interval <= 0 no hace nada.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      logger.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		log:      log.With(map[string]any{"component": "grant_sweeper"}),
	}
}

// Run bloquea hasta que ctx se cancela.
func (sw *Sweeper) Run(ctx context.Context) {
	if sw.interval <= 0 {
		return
	}

	t := time.NewTicker(sw.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sw.svc.ExpireStale(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sw.log.Error("sweep failed", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				sw.log.Info("expired stale grants", map[string]any{"count": n})
			}
		}
	}
}
