// Package config loads a RunConfig: the resource limits and hook
// bindings that parameterize a run without editing the ELF under
// test. A RunConfig is plain, YAML-serializable data; Apply is the only
// place it turns into the function-valued hooks project.Project binds.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"symexcore/executor"
	"symexcore/ga"
	"symexcore/project"
)

// LimitsConfig mirrors executor.Limits with snake_case field names, so
// a RunConfig file can override any subset of them.
type LimitsConfig struct {
	MaxCallDepth                int `yaml:"max_call_depth"`
	MaxIterCount                int `yaml:"max_iter_count"`
	MaxFnPtrResolutions         int `yaml:"max_fn_ptr_resolutions"`
	MaxMemoryAccessResolutions  int `yaml:"max_memory_access_resolutions"`
	MaxIntrinsicConcretizations int `yaml:"max_intrinsic_concretizations"`
}

// ToLimits converts to the executor.Limits the VM actually consumes.
func (l LimitsConfig) ToLimits() executor.Limits {
	return executor.Limits{
		MaxCallDepth:                l.MaxCallDepth,
		MaxIterCount:                l.MaxIterCount,
		MaxFnPtrResolutions:         l.MaxFnPtrResolutions,
		MaxMemoryAccessResolutions:  l.MaxMemoryAccessResolutions,
		MaxIntrinsicConcretizations: l.MaxIntrinsicConcretizations,
	}
}

func limitsConfigFrom(l executor.Limits) LimitsConfig {
	return LimitsConfig{
		MaxCallDepth:                l.MaxCallDepth,
		MaxIterCount:                l.MaxIterCount,
		MaxFnPtrResolutions:         l.MaxFnPtrResolutions,
		MaxMemoryAccessResolutions:  l.MaxMemoryAccessResolutions,
		MaxIntrinsicConcretizations: l.MaxIntrinsicConcretizations,
	}
}

// PCHookConfig names a symbol and the action project.PCHookKind takes
// when execution reaches it.
type PCHookConfig struct {
	Symbol        string `yaml:"symbol"`
	Kind          string `yaml:"kind"` // continue|suppress|end_success|end_failure|intrinsic
	FailureReason string `yaml:"failure_reason,omitempty"`
	IntrinsicName string `yaml:"intrinsic_name,omitempty"`
}

func (c PCHookConfig) toHook() (project.PCHook, error) {
	switch c.Kind {
	case "continue":
		return project.PCHook{Kind: project.Continue}, nil
	case "suppress":
		return project.PCHook{Kind: project.Suppress}, nil
	case "end_success":
		return project.PCHook{Kind: project.EndSuccess}, nil
	case "end_failure":
		return project.PCHook{Kind: project.EndFailure, FailureReason: c.FailureReason}, nil
	case "intrinsic":
		return project.PCHook{Kind: project.IntrinsicHook, IntrinsicName: c.IntrinsicName}, nil
	default:
		return project.PCHook{}, fmt.Errorf("config: pc hook %q: unknown kind %q", c.Symbol, c.Kind)
	}
}

// RegisterHookConfig names a register and a named transform to apply
// around reads or writes of it. project.RegisterHook is a function
// value and can't round-trip through YAML directly, so only the
// transforms named here are representable in a config file; "redirect"
// covers register aliasing, the only register-hook transform a config
// file needs to express.
type RegisterHookConfig struct {
	Register string `yaml:"register"`
	Kind     string `yaml:"kind"` // redirect
	Target   string `yaml:"target,omitempty"`
}

func (c RegisterHookConfig) toHook() (project.RegisterHook, error) {
	switch c.Kind {
	case "redirect":
		if c.Target == "" {
			return nil, fmt.Errorf("config: register hook %q: kind redirect requires target", c.Register)
		}
		target := c.Target
		return func(name string, value *ga.Operand) *ga.Operand {
			redirected := ga.Register(target)
			return &redirected
		}, nil
	default:
		return nil, fmt.Errorf("config: register hook %q: unknown kind %q", c.Register, c.Kind)
	}
}

// MemoryHookConfig names a symbol and whether accesses to it should be
// diverted away from the backing memory model ("skip", for a
// memory-mapped peripheral register simulated elsewhere) or left alone
// ("passthrough", useful for temporarily disabling a hook without
// removing its config entry).
type MemoryHookConfig struct {
	Symbol string `yaml:"symbol"`
	Kind   string `yaml:"kind"` // skip|passthrough
}

func (c MemoryHookConfig) toHook() (project.MemoryHook, error) {
	switch c.Kind {
	case "skip":
		return func(addr uint64, width uint32) bool { return true }, nil
	case "passthrough":
		return func(addr uint64, width uint32) bool { return false }, nil
	default:
		return nil, fmt.Errorf("config: memory hook %q: unknown kind %q", c.Symbol, c.Kind)
	}
}

// RunConfig is the complete set of knobs a run may be parameterized
// with: resource limits plus the five hook-list kinds.
type RunConfig struct {
	Limits             LimitsConfig         `yaml:"limits"`
	PCHooks            []PCHookConfig       `yaml:"pc_hooks"`
	RegisterReadHooks  []RegisterHookConfig `yaml:"register_read_hooks"`
	RegisterWriteHooks []RegisterHookConfig `yaml:"register_write_hooks"`
	MemoryReadHooks    []MemoryHookConfig   `yaml:"memory_read_hooks"`
	MemoryWriteHooks   []MemoryHookConfig   `yaml:"memory_write_hooks"`
}

// Default returns the baseline configuration defaults with no hooks bound.
func Default() RunConfig {
	return RunConfig{Limits: limitsConfigFrom(executor.DefaultLimits())}
}

// Load reads and parses a RunConfig from a YAML file, starting from
// Default so a file that only overrides a handful of fields still gets
// sane limits for the rest.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Apply binds every configured hook onto proj. PC hooks resolve their
// own symbol (Project.BindPCHook warns and drops a missing one);
// memory hooks key on a concrete address rather than a symbol name, so
// Apply resolves their symbol itself and applies the same
// warn-and-drop policy when it's missing.
func (c RunConfig) Apply(proj *project.Project) error {
	for _, h := range c.PCHooks {
		hook, err := h.toHook()
		if err != nil {
			return err
		}
		proj.BindPCHook(h.Symbol, hook)
	}
	for _, h := range c.RegisterReadHooks {
		hook, err := h.toHook()
		if err != nil {
			return err
		}
		proj.BindRegisterReadHook(h.Register, hook)
	}
	for _, h := range c.RegisterWriteHooks {
		hook, err := h.toHook()
		if err != nil {
			return err
		}
		proj.BindRegisterWriteHook(h.Register, hook)
	}
	for _, h := range c.MemoryReadHooks {
		addr, ok := proj.Symbols()[h.Symbol]
		if !ok {
			slog.Default().Warn("memory read hook symbol not found, dropping", "symbol", h.Symbol)
			continue
		}
		hook, err := h.toHook()
		if err != nil {
			return err
		}
		proj.BindMemoryReadHook(addr, hook)
	}
	for _, h := range c.MemoryWriteHooks {
		addr, ok := proj.Symbols()[h.Symbol]
		if !ok {
			slog.Default().Warn("memory write hook symbol not found, dropping", "symbol", h.Symbol)
			continue
		}
		hook, err := h.toHook()
		if err != nil {
			return err
		}
		proj.BindMemoryWriteHook(addr, hook)
	}
	return nil
}
