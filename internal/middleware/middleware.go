package middleware

import (
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/store"
)

// Middleware bundles the HTTP middleware over their shared
// dependencies. rdb is nil unless the Redis backend is configured;
// rate limiting degrades to a pass-through without it.
type Middleware struct {
	rdb *store.Redis
	log *logger.Logger
	cfg *config.Config
}

// New assembles the middleware set.
func New(rdb *store.Redis, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{rdb: rdb, log: log, cfg: cfg}
}
