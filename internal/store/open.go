package store

import (
	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// Open creates the backend selected by cfg.
func Open(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case config.StoreBackendFS:
		return NewFSStore(cfg.Root)
	case config.StoreBackendBolt:
		return NewBoltStore(cfg.Root)
	case config.StoreBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, ferrors.ConfigError("unsupported store backend").
			WithContext("backend", string(cfg.Backend)).
			Build()
	}
}
