package reaper

import (
	"time"

	"github.com/rs/zerolog/log"
)

// garbageCollector runs one sweep over the derived indexes of every shard.
func (r *Reaper) garbageCollector() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	start := time.Now()
	removed := r.storage.Expire(r.ttl)
	log.Debug().Str("duration", time.Since(start).String()).
		Msgf("Garbage collection complete: removed %d derived indexes", removed)
	return removed
}
