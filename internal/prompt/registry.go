// Package prompt owns the oracle prompt templates and the JSON schemas their
// answers must satisfy. Defaults are embedded; a YAML file can override them
// and is hot-reloaded on change.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"fplpilot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind names a prompt family.
type Kind string

const (
	KindDraft Kind = "draft"
	KindWeek  Kind = "week"
)

//go:embed default_prompts.yaml
var defaultPrompts []byte

type Template struct {
	Version int            `yaml:"version"`
	System  string         `yaml:"system"`
	User    string         `yaml:"user"`
	Schema  map[string]any `yaml:"schema"`

	system   *template.Template
	user     *template.Template
	compiled *jsonschema.Schema
}

type FileConfig struct {
	Prompts map[string]Template `yaml:"prompts"`
}

type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	set      map[Kind]Template
	loadedAt time.Time
}

// NewDefault returns a registry holding only the embedded templates.
func NewDefault() (*Registry, error) {
	r := &Registry{}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistry loads the embedded templates, overlays the file at path and
// watches it. An empty path behaves like NewDefault.
func NewRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewDefault()
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[prompt] reload %s failed, keeping previous templates: %v", evt.Name, err)
		}
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	base, err := decodeFile(defaultPrompts)
	if err != nil {
		return fmt.Errorf("embedded prompts: %w", err)
	}
	if r.path != "" {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		over, err := decodeFile(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(r.path), err)
		}
		for k, tpl := range over.Prompts {
			base.Prompts[k] = mergeTemplate(base.Prompts[k], tpl)
		}
	}
	set := make(map[Kind]Template, len(base.Prompts))
	for name, tpl := range base.Prompts {
		compiled, err := compileTemplate(name, tpl)
		if err != nil {
			return err
		}
		set[Kind(name)] = compiled
	}
	for _, k := range []Kind{KindDraft, KindWeek} {
		if _, ok := set[k]; !ok {
			return fmt.Errorf("prompt %q missing", k)
		}
	}
	r.mu.Lock()
	r.set = set
	r.loadedAt = time.Now()
	r.mu.Unlock()
	src := "embedded"
	if r.path != "" {
		src = filepath.Base(r.path)
	}
	logger.Infof("[prompt] loaded %d templates from %s", len(set), src)
	return nil
}

func decodeFile(raw []byte) (FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, err
	}
	if cfg.Prompts == nil {
		cfg.Prompts = map[string]Template{}
	}
	return cfg, nil
}

func mergeTemplate(base, over Template) Template {
	if over.Version > 0 {
		base.Version = over.Version
	}
	if strings.TrimSpace(over.System) != "" {
		base.System = over.System
	}
	if strings.TrimSpace(over.User) != "" {
		base.User = over.User
	}
	if len(over.Schema) > 0 {
		base.Schema = over.Schema
	}
	return base
}

func compileTemplate(name string, tpl Template) (Template, error) {
	if tpl.Version <= 0 {
		tpl.Version = 1
	}
	var err error
	if tpl.system, err = template.New(name + ".system").Parse(tpl.System); err != nil {
		return Template{}, fmt.Errorf("prompt %s system: %w", name, err)
	}
	if tpl.user, err = template.New(name + ".user").Option("missingkey=error").Parse(tpl.User); err != nil {
		return Template{}, fmt.Errorf("prompt %s user: %w", name, err)
	}
	if len(tpl.Schema) > 0 {
		if tpl.compiled, err = compileSchema(name, tpl.Schema); err != nil {
			return Template{}, fmt.Errorf("prompt %s schema: %w", name, err)
		}
	}
	return tpl, nil
}

func compileSchema(name string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	res := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(res, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(res)
}

func (r *Registry) template(kind Kind) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.set[kind]
	return tpl, ok
}

// Render fills the system and user templates of kind with data.
func (r *Registry) Render(kind Kind, data any) (system, user string, err error) {
	tpl, ok := r.template(kind)
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", kind)
	}
	var sb, ub strings.Builder
	if err := tpl.system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s system: %w", kind, err)
	}
	if err := tpl.user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("render %s user: %w", kind, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}

// Validate checks a decoded JSON document against the schema of kind. Kinds
// without a schema accept anything.
func (r *Registry) Validate(kind Kind, doc any) error {
	tpl, ok := r.template(kind)
	if !ok {
		return fmt.Errorf("unknown prompt %q", kind)
	}
	if tpl.compiled == nil {
		return nil
	}
	return tpl.compiled.Validate(doc)
}

// Version reports the configured template version, recorded with every oracle call.
func (r *Registry) Version(kind Kind) int {
	tpl, _ := r.template(kind)
	return tpl.Version
}
