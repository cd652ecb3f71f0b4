// Package config loads engine settings and method metadata from YAML or TOML.
//
// Example (YAML):
//
//	name: fraction
//	sweep_interval: 500ms
//	sweep_workers: 2
//	hit_flag_field: ReturnFromCache
//	methods:
//	  SetNum:      {kind: mutator}
//	  SetDenum:    {kind: mutator}
//	  DoubleValue: {kind: cacheable, ttl: 1s}
//
// The same keys work in TOML ([methods.DoubleValue] kind = "cacheable").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/statecache"
)

// Format identifies the syntax of a config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Kind classifies a method.
type Kind string

const (
	KindMutator   Kind = "mutator"
	KindCacheable Kind = "cacheable"
	KindPlain     Kind = "plain"
)

// Duration is a time.Duration written as a Go duration string ("1s", "250ms").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// MethodSpec is the metadata of one method.
type MethodSpec struct {
	Kind Kind     `yaml:"kind" toml:"kind"`
	TTL  Duration `yaml:"ttl" toml:"ttl"`
}

// File mirrors the config schema.
type File struct {
	Name          string                `yaml:"name" toml:"name"`
	SweepInterval Duration              `yaml:"sweep_interval" toml:"sweep_interval"`
	SweepWorkers  int                   `yaml:"sweep_workers" toml:"sweep_workers"`
	KeyArgs       bool                  `yaml:"key_args" toml:"key_args"`
	HitFlagField  string                `yaml:"hit_flag_field" toml:"hit_flag_field"`
	Methods       map[string]MethodSpec `yaml:"methods" toml:"methods"`
}

// LoadOptions tunes loading.
type LoadOptions struct {
	// Strict turns unknown keys and suspicious entries into errors.
	Strict bool
	// Format overrides detection by file extension.
	Format Format
}

// Result wraps a loaded File alongside any non-fatal warnings.
type Result struct {
	File     File
	Warnings []string
}

// Load reads and validates the config file at path.
func Load(path string, opts LoadOptions) (Result, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	format := opts.Format
	if format == "" {
		if format, err = formatOf(path); err != nil {
			return Result{}, err
		}
	}
	res, err := Parse(data, format, opts.Strict)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	for i, w := range res.Warnings {
		res.Warnings[i] = path + ": " + w
	}
	return res, nil
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%s: cannot tell config format from extension", path)
}

// Parse decodes and validates data.
func Parse(data []byte, format Format, strict bool) (Result, error) {
	var res Result
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &res.File)
	case FormatTOML:
		err = toml.Unmarshal(data, &res.File)
	default:
		return res, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return res, err
	}

	unknown, err := collectUnknownKeys(data, format)
	if err != nil {
		return res, err
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		msg := "unknown configuration keys: " + strings.Join(unknown, ", ")
		if strict {
			return res, errors.New(msg)
		}
		res.Warnings = append(res.Warnings, msg)
	}

	warnings, err := res.File.validate()
	if err != nil {
		return res, err
	}
	if strict && len(warnings) > 0 {
		return res, errors.New(strings.Join(warnings, "; "))
	}
	res.Warnings = append(res.Warnings, warnings...)
	return res, nil
}

// collectUnknownKeys re-decodes data strictly and reports the offending keys.
func collectUnknownKeys(data []byte, format Format) ([]string, error) {
	var strictFile File
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err := dec.Decode(&strictFile)
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			keys := make([]string, 0, len(sme.Errors))
			for _, de := range sme.Errors {
				keys = append(keys, strings.Join(de.Key(), "."))
			}
			return keys, nil
		}
		return nil, err
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err := dec.Decode(&strictFile)
		var te *yaml.TypeError
		if errors.As(err, &te) {
			keys := make([]string, 0, len(te.Errors))
			for _, msg := range te.Errors {
				// "line 3: field foo not found in type config.File"
				if _, rest, ok := strings.Cut(msg, "field "); ok {
					if name, _, ok := strings.Cut(rest, " not found"); ok {
						keys = append(keys, name)
					}
				}
			}
			return keys, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return nil, nil
}

func (f File) validate() (warnings []string, err error) {
	if f.SweepWorkers < 0 {
		return nil, fmt.Errorf("sweep_workers must be >= 0, got %d", f.SweepWorkers)
	}
	names := make([]string, 0, len(f.Methods))
	for name := range f.Methods {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		spec := f.Methods[name]
		switch spec.Kind {
		case KindMutator, KindPlain:
			if spec.TTL != 0 {
				warnings = append(warnings, fmt.Sprintf("methods.%s: ttl ignored for kind %q", name, spec.Kind))
			}
		case KindCacheable:
		case "":
			return nil, fmt.Errorf("methods.%s: kind is required", name)
		default:
			return nil, fmt.Errorf("methods.%s: unknown kind %q (want mutator, cacheable or plain)", name, spec.Kind)
		}
	}
	return warnings, nil
}

// Rule converts the spec to engine metadata. Plain methods get a zero rule.
func (s MethodSpec) Rule() statecache.Rule {
	switch s.Kind {
	case KindMutator:
		return statecache.Rule{Mutates: true}
	case KindCacheable:
		return statecache.Rule{Cacheable: true, TTL: time.Duration(s.TTL)}
	default:
		return statecache.Rule{}
	}
}

// Policy builds the dispatch metadata described by Methods. Every listed
// method gets a rule, plain ones included.
func (f File) Policy() *statecache.Policy {
	p := statecache.NewPolicy()
	for name, spec := range f.Methods {
		p.Set(statecache.Method(name), spec.Rule())
	}
	return p
}

// Apply copies the settings into o. Zero values leave o untouched, except
// Dispatch, which is always replaced when Methods is non-empty.
func (f File) Apply(o *statecache.Options) {
	if f.Name != "" {
		o.Name = f.Name
	}
	if f.SweepInterval != 0 {
		o.SweepInterval = time.Duration(f.SweepInterval)
	}
	if f.SweepWorkers != 0 {
		o.SweepWorkers = f.SweepWorkers
	}
	if f.KeyArgs {
		o.KeyArgs = true
	}
	if f.HitFlagField != "" {
		o.HitFlag = statecache.FieldFlag(f.HitFlagField)
	}
	if len(f.Methods) > 0 {
		o.Dispatch = f.Policy()
	}
}
