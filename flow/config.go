package flow

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// MergePolicyReplace selects ReplacePolicy in a Config.
	MergePolicyReplace = "replace"
	// MergePolicyAdditive selects AdditivePolicy in a Config.
	MergePolicyAdditive = "additive"
)

// ConfigLoader is an interface for loading configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

var (
	loaderMu            sync.RWMutex
	defaultConfigLoader ConfigLoader
)

// SetConfigLoader sets the default config loader for name-based loading.
func SetConfigLoader(loader ConfigLoader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()

	defaultConfigLoader = loader
}

func configLoader() ConfigLoader {
	loaderMu.RLock()
	defer loaderMu.RUnlock()

	return defaultConfigLoader
}

// Config declares one flow in YAML. Guards, effects and computed
// destinations refer to subject methods by name.
type Config struct {
	Name        string         `json:"name"        yaml:"name"`
	Attribute   string         `json:"attribute"   yaml:"attribute"`
	MergePolicy string         `json:"mergePolicy" yaml:"mergePolicy"`
	States      []StateConfig  `json:"states"      yaml:"states"`
	Actions     []ActionConfig `json:"actions"     yaml:"actions"`
}

// StateConfig declares a state and the actions leaving it. A state without
// actions is terminal.
type StateConfig struct {
	Name    string         `json:"name"    yaml:"name"`
	Actions []ActionConfig `json:"actions" yaml:"actions"`
}

// ActionConfig declares one action. Inside a state From may be omitted.
type ActionConfig struct {
	Name     string         `json:"name"     yaml:"name"`
	From     []string       `json:"from"     yaml:"from"`
	To       string         `json:"to"       yaml:"to"`
	ToMethod string         `json:"toMethod" yaml:"toMethod"`
	If       string         `json:"if"       yaml:"if"`
	IfAll    []string       `json:"ifAll"    yaml:"ifAll"`
	Requires *RequireConfig `json:"requires" yaml:"requires"`
	Effects  []string       `json:"effects"  yaml:"effects"`
}

// RequireConfig declares a cross-attribute dependency guard.
type RequireConfig struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	In        []string `json:"in"        yaml:"in"`
}

// LoadConfig loads a flow configuration by path or name.
// Supports two modes:
//   - Path mode: a value containing '/', '\', or ending in '.yaml'/'.yml' is read from the filesystem
//   - Name mode: a bare name is loaded via the registered ConfigLoader
func LoadConfig(pathOrName string) (*Config, error) {
	lower := strings.ToLower(pathOrName)

	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(lower, ".yaml") ||
		strings.HasSuffix(lower, ".yml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	loader := configLoader()
	if loader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := loader.LoadByName(pathOrName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, loader.ListAvailable(), err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a flow configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from a filesystem such as embed.FS.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks the configuration's shape. Method names and dependency
// states are checked later, when the flow is declared.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrConfigNameRequired
	}

	if c.Attribute == "" {
		return ErrConfigAttributeRequired
	}

	switch c.MergePolicy {
	case "", MergePolicyReplace, MergePolicyAdditive:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMergePolicy, c.MergePolicy)
	}

	stateNames := make(map[State]bool)

	for _, state := range c.States {
		name := StateOf(state.Name)
		if name == Absent {
			return fmt.Errorf("state: %w", ErrEmptyName)
		}

		if stateNames[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
		}

		stateNames[name] = true

		for i, action := range state.Actions {
			err := action.validate(true)
			if err != nil {
				return fmt.Errorf("state %s, action %d: %w", state.Name, i, err)
			}
		}
	}

	for i, action := range c.Actions {
		err := action.validate(false)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	return nil
}

func (a ActionConfig) validate(scoped bool) error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrActionNameRequired
	}

	if !scoped && len(a.From) == 0 {
		return fmt.Errorf("%s: %w", a.Name, ErrNoSourceState)
	}

	switch {
	case a.To != "" && a.ToMethod != "":
		return fmt.Errorf("%s: %w", a.Name, ErrDuplicateDestination)
	case a.To == "" && a.ToMethod == "":
		return fmt.Errorf("%s: %w", a.Name, ErrNoDestination)
	}

	guards := 0

	if a.If != "" {
		guards++
	}

	if len(a.IfAll) > 0 {
		guards++
	}

	if a.Requires != nil {
		guards++
	}

	if guards > 1 {
		return fmt.Errorf("%s: %w", a.Name, ErrGuardAlreadySet)
	}

	return nil
}

// PolicyOption returns the Definition option selected by MergePolicy.
func PolicyOption[T Subject](c *Config) Option[T] {
	if c.MergePolicy == MergePolicyAdditive {
		return WithMergePolicy(AdditivePolicy[T]())
	}

	return WithMergePolicy(ReplacePolicy[T]())
}

// ConfigBlock turns a configuration into a declaration block for T.
func ConfigBlock[T Subject](c *Config) Block[T] {
	return func(d *Declarer[T]) {
		for _, state := range c.States {
			actions := state.Actions

			d.State(State(state.Name), func(s *Scope[T]) {
				for _, action := range actions {
					applyAction(s.Action(action.Name), action)
				}
			})
		}

		for _, action := range c.Actions {
			applyAction(d.Action(action.Name), action)
		}
	}
}

func applyAction[T Subject](b *ActionBuilder[T], a ActionConfig) {
	if len(a.From) > 0 {
		b.From(States(toAnyStrings(a.From)...)...)
	}

	if a.To != "" {
		b.To(State(a.To))
	}

	if a.ToMethod != "" {
		b.ToMethod(a.ToMethod)
	}

	switch {
	case a.If != "":
		b.If(a.If)
	case len(a.IfAll) > 0:
		guards := make([]Guard[T], len(a.IfAll))
		for i, name := range a.IfAll {
			guards[i] = Named[T](name)
		}

		b.Guard(All(guards...))
	case a.Requires != nil:
		b.Requires(a.Requires.Attribute, States(toAnyStrings(a.Requires.In)...)...)
	}

	for _, name := range a.Effects {
		b.EffectMethod(name)
	}
}

func toAnyStrings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}
