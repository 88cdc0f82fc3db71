package integrations

import (
	"fmt"

	"github.com/chxlky/boardsync/internal/config"
	"github.com/chxlky/boardsync/internal/models"
)

// NewRegistryFromConfig wires the configured driver. The memory driver serves
// every provider out of mem; the google driver serves GOOGLE only.
func NewRegistryFromConfig(cfg config.CalendarConfig, mem *MemoryStore) (*Registry, error) {
	r := NewRegistry()
	switch cfg.Driver {
	case "memory", "":
		if mem == nil {
			mem = NewMemoryStore()
		}
		fake := NewMemoryCalendar(mem)
		r.Register(models.ProviderGoogle, fake)
		r.Register(models.ProviderOutlook, fake)
	case "google":
		gc, err := NewGoogleCalendar(cfg.Google.ServiceAccount)
		if err != nil {
			return nil, err
		}
		r.Register(models.ProviderGoogle, gc)
	default:
		return nil, fmt.Errorf("unsupported calendar driver %q", cfg.Driver)
	}
	return r, nil
}
