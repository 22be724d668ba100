package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-flow/cli"
	"github.com/amp-labs/amp-flow/flow"
	"github.com/amp-labs/amp-flow/logger"
)

var (
	errUsage        = errors.New("usage: flowctl <validate|describe|run> [flags] FILE...")
	errNoFiles      = errors.New("no flow files given")
	errInvalidState = errors.New("invalid -state value, want attribute=state")
)

// settings are read from the environment, or a .env file, at startup.
type settings struct {
	Environment string `env:"FLOWCTL_ENV"   envDefault:"local"`
	Plain       bool   `env:"FLOWCTL_PLAIN" envDefault:"false"`
	Width       int    `env:"FLOWCTL_WIDTH" envDefault:"80"`
}

type app struct {
	out     io.Writer
	chooser cli.Chooser

	// args reads invocation arguments when run is given -args.
	args func(label string) ([]string, error)

	plain bool
	width int
}

func (a *app) run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errUsage
	}

	switch argv[0] {
	case "validate":
		return a.validate(argv[1:])
	case "describe":
		return a.describe(argv[1:])
	case "run":
		return a.interactive(ctx, argv[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, argv[0])
	}
}

// validate checks each file's structure. Method names are not resolved.
func (a *app) validate(paths []string) error {
	if len(paths) == 0 {
		return errNoFiles
	}

	var errs []error

	for _, path := range paths {
		cfg, err := flow.LoadConfig(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			fmt.Fprintf(a.out, "FAIL %s: %v\n", path, err)

			continue
		}

		fmt.Fprintf(a.out, "ok   %s: flow %s on %s, %d states, %d rules\n",
			path, cfg.Name, cfg.Attribute, len(cfg.States), countRules(cfg))
	}

	return errors.Join(errs...)
}

func countRules(cfg *flow.Config) int {
	n := 0

	for _, s := range cfg.States {
		n += len(s.Actions)
	}

	for _, action := range cfg.Actions {
		n += len(action.From)
	}

	return n
}

func (a *app) describe(paths []string) error {
	m, _, err := a.machine(paths)
	if err != nil {
		return err
	}

	for _, attr := range m.Attributes() {
		def, _ := m.Flow(attr)

		header := fmt.Sprintf("%s.%s\nfingerprint %016x", def.SubjectType(), attr, def.Fingerprint())
		fmt.Fprintln(a.out, cli.Banner(header, a.width, cli.AlignCenter, a.plain))

		for _, info := range def.Describe() {
			fmt.Fprintf(a.out, "  %s\n", info)
		}
	}

	return nil
}

// machine defines one flow per file, in order, on a shared registry so
// later files may depend on earlier ones. It also returns each attribute's
// initial state: the first declared state, or the first source of the
// first top-level action.
func (a *app) machine(paths []string) (*flow.Machine[*flow.Object], map[string]flow.State, error) {
	if len(paths) == 0 {
		return nil, nil, errNoFiles
	}

	m := flow.NewMachine[*flow.Object](flow.NewRegistry(),
		flow.WithLogger[*flow.Object](flow.NewDefaultLogger(slog.LevelInfo)))
	initial := make(map[string]flow.State, len(paths))

	for _, path := range paths {
		cfg, err := flow.LoadConfig(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}

		_, err = m.DefineConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}

		switch {
		case len(cfg.States) > 0:
			initial[cfg.Attribute] = flow.StateOf(cfg.States[0].Name)
		case len(cfg.Actions) > 0 && len(cfg.Actions[0].From) > 0:
			initial[cfg.Attribute] = flow.StateOf(cfg.Actions[0].From[0])
		}
	}

	return m, initial, nil
}

type stateFlags map[string]flow.State

func (s stateFlags) String() string {
	parts := make([]string, 0, len(s))
	for attr, state := range s {
		parts = append(parts, attr+"="+state.String())
	}

	return strings.Join(parts, ",")
}

func (s stateFlags) Set(value string) error {
	attr, state, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(attr) == "" {
		return fmt.Errorf("%w: %q", errInvalidState, value)
	}

	s[strings.TrimSpace(attr)] = flow.StateOf(state)

	return nil
}

// interactive offers the currently available actions of every flow until
// the operator quits, nothing is available, or ctx is canceled.
func (a *app) interactive(ctx context.Context, argv []string) error {
	overrides := stateFlags{}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Var(overrides, "state", "initial state as attribute=state (repeatable)")
	strict := fs.Bool("strict", false, "report rejected and undeclared actions as errors")
	promptArgs := fs.Bool("args", false, "prompt for invocation arguments")

	err := fs.Parse(argv)
	if err != nil {
		return err
	}

	m, initial, err := a.machine(fs.Args())
	if err != nil {
		return err
	}

	maps.Copy(initial, overrides)

	obj := flow.NewObject(initial)

	mode := flow.Soft
	if *strict {
		mode = flow.Strict
	}

	for ctx.Err() == nil {
		choices := availableChoices(m, obj)
		if len(choices) == 0 {
			fmt.Fprintln(a.out, "no actions available")

			break
		}

		choice, err := a.chooser.Choose(describeStates(obj), choices)
		if errors.Is(err, cli.ErrQuit) {
			break
		}

		if err != nil {
			return err
		}

		var args []any

		if *promptArgs && a.args != nil {
			raw, err := a.args(choice + " arguments")
			if err != nil {
				return err
			}

			for _, arg := range raw {
				args = append(args, arg)
			}
		}

		attr, action, _ := strings.Cut(choice, ".")
		from := obj.State(attr)

		next, ok, err := m.Invoke(ctx, obj, attr, action, args, mode)

		switch {
		case err != nil:
			logger.Get(ctx).DebugContext(ctx, "Invocation failed", "choice", choice, "error", err)
			fmt.Fprintf(a.out, "%s: %v\n", choice, err)
		case ok:
			fmt.Fprintf(a.out, "%s: %s -> %s\n", attr, from, next)
		default:
			fmt.Fprintf(a.out, "%s: rejected\n", choice)
		}
	}

	fmt.Fprintln(a.out, describeStates(obj))

	return nil
}

func availableChoices(m *flow.Machine[*flow.Object], obj *flow.Object) []string {
	var choices []string

	for _, attr := range m.Attributes() {
		actions, _ := m.Available(obj, attr)
		for _, action := range actions {
			choices = append(choices, attr+"."+action)
		}
	}

	return choices
}

func describeStates(obj *flow.Object) string {
	states := obj.States()
	attrs := slices.Collect(maps.Keys(states))
	natsort.Sort(attrs)

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, attr+"="+states[attr].String())
	}

	return strings.Join(parts, " ")
}
