package app

import (
	"github.com/vk/taproot/internal/backend"
	"github.com/vk/taproot/internal/middleware"
	"github.com/vk/taproot/internal/registry"
	"github.com/vk/taproot/internal/settings"
)

// DefaultRegistry returns a registry with the built-in backends and
// middlewares. Callers register their step definitions on top of it.
func DefaultRegistry() *registry.Registry {
	reg := registry.New()

	reg.RegisterBackend("dvc", func(v backend.Values) (backend.Backend, error) {
		return backend.NewDVC(v)
	})
	reg.RegisterBackend("argo", func(v backend.Values) (backend.Backend, error) {
		return backend.NewArgo(v)
	})
	reg.RegisterBackend("gitlab", func(v backend.Values) (backend.Backend, error) {
		return backend.NewGitLab(v)
	})

	reg.RegisterMiddleware("timing", func(settings.Environment) (middleware.Middleware, error) {
		return middleware.NewTiming(), nil
	})
	reg.RegisterMiddleware("prometheus", func(env settings.Environment) (middleware.Middleware, error) {
		var cfg middleware.PrometheusSettings
		r := settings.Resolver{Permissive: true}
		if err := r.BindPrefixed("PROMETHEUS", &cfg, env); err != nil {
			return nil, err
		}
		return middleware.NewPrometheus(cfg), nil
	})

	return reg
}
