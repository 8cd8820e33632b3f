// Package plugin re-exports the enumerated plugin hook surface from
// internal/config under the name external plugin authors actually import,
// keeping config (which every phase depends on) free of a public-facing
// name. The hook surface is a fixed, enumerated interface rather than
// duck-typed registration, matching the Design Notes' resolution of that
// open question.
package plugin

import "github.com/ruidosujeira/kona/internal/config"

type Plugin = config.Plugin
type Build = config.Build
type OnResolveArgs = config.OnResolveArgs
type OnResolveResult = config.OnResolveResult
type OnLoadArgs = config.OnLoadArgs
type OnLoadResult = config.OnLoadResult
type OnTransformArgs = config.OnTransformArgs
type OnTransformResult = config.OnTransformResult
type OnResolveFunc = config.OnResolveFunc
type OnLoadFunc = config.OnLoadFunc
type OnTransformFunc = config.OnTransformFunc

// Registry is the concrete config.Build implementation that plugins
// registered via Options.Plugins are set up against. Registration order is
// preserved (spec §6: "Plugin order is registration order; first non-null
// return wins for onResolve/onLoad; onTransform callbacks chain").
type Registry struct {
	resolvers  []namedResolve
	loaders    []namedLoad
	transforms []namedTransform
	starts     []func() error
	ends       []func() error
}

type namedResolve struct {
	filter string
	fn     OnResolveFunc
}
type namedLoad struct {
	filter string
	fn     OnLoadFunc
}
type namedTransform struct {
	filter string
	fn     OnTransformFunc
}

func NewRegistry(plugins []Plugin) (*Registry, error) {
	r := &Registry{}
	for _, p := range plugins {
		p.Setup(r)
	}
	return r, nil
}

func (r *Registry) OnResolve(filter string, fn OnResolveFunc) {
	r.resolvers = append(r.resolvers, namedResolve{filter, fn})
}
func (r *Registry) OnLoad(filter string, fn OnLoadFunc) {
	r.loaders = append(r.loaders, namedLoad{filter, fn})
}
func (r *Registry) OnTransform(filter string, fn OnTransformFunc) {
	r.transforms = append(r.transforms, namedTransform{filter, fn})
}
func (r *Registry) OnStart(fn func() error) { r.starts = append(r.starts, fn) }
func (r *Registry) OnEnd(fn func() error)    { r.ends = append(r.ends, fn) }

// Resolve runs registered onResolve hooks in order, returning the first
// non-null result (spec §6).
func (r *Registry) Resolve(args OnResolveArgs) (OnResolveResult, bool, error) {
	for _, nr := range r.resolvers {
		if !matchFilter(nr.filter, args.Path) {
			continue
		}
		result, handled, err := nr.fn(args)
		if err != nil {
			return OnResolveResult{}, false, err
		}
		if handled {
			return result, true, nil
		}
	}
	return OnResolveResult{}, false, nil
}

func (r *Registry) Load(args OnLoadArgs) (OnLoadResult, bool, error) {
	for _, nl := range r.loaders {
		if !matchFilter(nl.filter, args.Path) {
			continue
		}
		result, handled, err := nl.fn(args)
		if err != nil {
			return OnLoadResult{}, false, err
		}
		if handled {
			return result, true, nil
		}
	}
	return OnLoadResult{}, false, nil
}

// Transform chains every matching onTransform hook (spec §6: "onTransform
// callbacks chain").
func (r *Registry) Transform(args OnTransformArgs) (string, error) {
	code := args.Code
	for _, nt := range r.transforms {
		if !matchFilter(nt.filter, args.Path) {
			continue
		}
		result, err := nt.fn(OnTransformArgs{Path: args.Path, Code: code})
		if err != nil {
			return "", err
		}
		code = result.Code
	}
	return code, nil
}

func (r *Registry) RunOnStart() error {
	for _, fn := range r.starts {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) RunOnEnd() error {
	for _, fn := range r.ends {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// matchFilter treats an empty filter as "match everything" and otherwise
// does a plain substring match; plugin filters in this corpus are simple
// path-fragment checks rather than full regular expressions.
func matchFilter(filter string, path string) bool {
	if filter == "" {
		return true
	}
	return len(path) >= len(filter) && contains(path, filter)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
