package escrow

import (
	"time"

	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/jellydator/ttlcache/v3"
)

// reservationCache keeps closed reservations, which can never change again, out of the store's read path.
// A nil cache is valid and caches nothing.
type reservationCache struct {
	cache *ttlcache.Cache[model.ReservationKey, *model.Reservation]
}

func newReservationCache(ttl time.Duration, size int) *reservationCache {
	if ttl <= 0 || size <= 0 {
		return nil
	}

	return &reservationCache{
		cache: ttlcache.New[model.ReservationKey, *model.Reservation](
			ttlcache.WithTTL[model.ReservationKey, *model.Reservation](ttl),
			ttlcache.WithCapacity[model.ReservationKey, *model.Reservation](uint64(size)),
			ttlcache.WithDisableTouchOnHit[model.ReservationKey, *model.Reservation](),
		),
	}
}

func (c *reservationCache) get(key model.ReservationKey) (*model.Reservation, bool) {
	if c == nil {
		return nil, false
	}

	item := c.cache.Get(key)
	if item == nil {
		prometheusEscrowCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	prometheusEscrowCache.WithLabelValues("hit").Inc()

	return item.Value().Clone(), true
}

func (c *reservationCache) put(r *model.Reservation) {
	if c == nil || !r.Status.IsTerminal() {
		return
	}

	c.cache.Set(r.Key(), r.Clone(), ttlcache.DefaultTTL)
}

func (c *reservationCache) len() int {
	if c == nil {
		return 0
	}

	return c.cache.Len()
}
