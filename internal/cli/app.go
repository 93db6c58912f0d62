package cli

import (
	"os"

	"github.com/stagehand-dev/stagehand/internal/approval"
	"github.com/stagehand-dev/stagehand/internal/config"
	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/feedback"
	"github.com/stagehand-dev/stagehand/internal/guardrail"
	"github.com/stagehand-dev/stagehand/internal/notify"
	"github.com/stagehand-dev/stagehand/internal/runner"
	"github.com/stagehand-dev/stagehand/internal/sanitize"
	"github.com/stagehand-dev/stagehand/internal/stage"
	"github.com/stagehand-dev/stagehand/internal/store"
	"github.com/stagehand-dev/stagehand/internal/workflow"
)

// app bundles the wired services a command needs. Commands open it, use
// what they need, and Close it.
type app struct {
	cfg       config.Config
	store     *store.Store
	provider  *workflow.DirProvider
	engine    *engine.Engine
	approvals *approval.Manager
	feedback  *feedback.Service
	guardrail *guardrail.Checker
	sanitizer *sanitize.Service
}

// openApp resolves config, opens the store and wires every service.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, WrapExitError(ExitCommandError, "prepare root", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}

	provider := workflow.NewDirProvider(cfg.DefinitionsDir)
	exec := runner.Exec{Timeout: cfg.ExecTimeout.Std()}
	sanitizer := sanitize.New(cfg.BrandsDir, cfg.PatternLibrary)
	fb := feedback.New(st, provider)

	registry, err := stage.DefaultRegistry(stage.Deps{
		Runner:  exec,
		Markers: st,
		Audit:   st,
		Improver: feedback.StageImprover{
			Service: fb,
		},
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		OutboxDir: cfg.OutboxDir,
	})
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "build pipeline", err)
	}

	gateway := notify.Exec{
		Runner:  exec,
		Command: cfg.Notify.Command,
		Args:    cfg.Notify.Args,
		Timeout: cfg.Notify.Timeout.Std(),
	}

	return &app{
		cfg:       cfg,
		store:     st,
		provider:  provider,
		engine:    engine.New(st, provider, registry),
		approvals: approval.New(st, gateway, approval.WithSanitizer(sanitizer)),
		feedback:  fb,
		guardrail: guardrail.New(st, cfg.BrandsDir),
		sanitizer: sanitizer,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
