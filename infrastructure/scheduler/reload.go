package scheduler

import (
	"context"

	"github.com/ibmi-agents/db2i-go/domain/config"
	infraconfig "github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Watch reloads the schedules whenever the catalog file changes, until ctx
// is done. merge combines the file catalog with the built-in one.
func (s *Scheduler) Watch(ctx context.Context, path string, loader *infraconfig.Loader, merge func(*config.Catalog) *config.Catalog) error {
	w := infraconfig.NewWatcher(path, loader, func(c *config.Catalog) {
		if merge != nil {
			c = merge(c)
		}
		if err := s.Load(c.Schedules); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("some schedules were not reloaded")
		}
	})
	return w.Run(ctx)
}
