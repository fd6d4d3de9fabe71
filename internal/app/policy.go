package app

import (
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/lua"
	"github.com/dokzlo13/plantboxd/internal/remote"
)

// loadPolicy builds the setpoint policy named by sync.setpoint_policy.
// A relative script path resolves against configDir. The returned close
// function releases the Lua VM, if any.
func loadPolicy(cfg config.SyncConfig, configDir string) (remote.SetpointPolicy, func(), error) {
	if cfg.SetpointPolicy != config.PolicyLua {
		p, err := remote.BuiltinPolicy(cfg.SetpointPolicy)
		return p, func() {}, err
	}

	path := cfg.Script
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}

	p, err := lua.LoadPolicy(path)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("script", path).Msg("Lua setpoint policy loaded")
	return p, p.Close, nil
}
