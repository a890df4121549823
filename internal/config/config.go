package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"copytopoints/internal/geo"
	"copytopoints/internal/instance"
	"copytopoints/internal/propagate"
	"copytopoints/internal/realize"
)

var validate = validator.New()

// Config holds the document paths of one cook and its settings.
type Config struct {
	// Paths
	BaseDir string `yaml:"base_dir"`
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	Output  string `yaml:"output"`

	Workers int `yaml:"workers" validate:"gte=0"`
	Log     Log `yaml:"log"`

	Params Params `yaml:"params"`
}

type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Params mirrors instance.Params with YAML-friendly values.
type Params struct {
	SourceGroup     string `yaml:"source_group"`
	SourceGroupType string `yaml:"source_group_type" validate:"omitempty,oneof=guess prims points"`
	TargetGroup     string `yaml:"target_group"`

	UseIDAttrib bool   `yaml:"use_id_attrib"`
	IDAttrib    string `yaml:"id_attrib" validate:"required_if=UseIDAttrib true"`

	Pack        bool   `yaml:"pack"`
	Pivot       string `yaml:"pivot" validate:"omitempty,oneof=centroid origin"`
	ViewportLOD string `yaml:"viewport_lod" validate:"omitempty,oneof=full points box centroid hidden"`

	// Transform and UseImplicitN default to on when absent.
	Transform    *bool `yaml:"transform"`
	UseImplicitN *bool `yaml:"use_implicit_n"`

	// TargetAttribs absent means the canonical list; an empty list means none.
	TargetAttribs []AttribRequest `yaml:"target_attribs" validate:"dive"`
}

type AttribRequest struct {
	// Use defaults to on when absent.
	Use     *bool  `yaml:"use"`
	ApplyTo string `yaml:"apply_to" validate:"omitempty,oneof=points point vertices vertex verts prims prim primitives primitive"`
	Method  string `yaml:"method" validate:"omitempty,oneof=copy none mult add sub"`
	Pattern string `yaml:"pattern"`
}

// Load reads a YAML config file. Paths in it are relative to the file's
// directory unless base_dir says otherwise.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	} else if !filepath.IsAbs(cfg.BaseDir) {
		cfg.BaseDir = filepath.Join(filepath.Dir(path), cfg.BaseDir)
	}
	return cfg, nil
}

// Parse decodes a YAML config. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := decodeStrict(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseParams decodes a bare params block.
func ParseParams(data []byte) (Params, error) {
	var p Params
	if err := decodeStrict(data, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Source != "" {
		c.Source = flags.Source
	}
	if flags.Target != "" {
		c.Target = flags.Target
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.Log.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		c.Log.Format = flags.LogFormat
	}
	if flags.Pack {
		c.Params.Pack = true
	}

	if c.BaseDir == "" {
		c.BaseDir, _ = os.Getwd()
	}
	c.Source = c.abs(c.Source)
	c.Target = c.abs(c.Target)
	c.Output = c.abs(c.Output)

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.Params.Resolve()
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Validate checks the resolved config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks resolved params on their own.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Source    string
	Target    string
	Output    string
	Workers   int
	LogLevel  string
	LogFormat string
	Pack      bool
}

// Resolve fills in parameter defaults.
func (p *Params) Resolve() {
	if p.SourceGroupType == "" {
		p.SourceGroupType = instance.GroupGuess.String()
	}
	if p.IDAttrib == "" {
		p.IDAttrib = instance.DefaultIDAttrib
	}
	if p.Pivot == "" {
		p.Pivot = realize.PivotCentroid.String()
	}
	if p.ViewportLOD == "" {
		p.ViewportLOD = geo.LODFull.String()
	}
	if p.Transform == nil {
		p.Transform = ptr(true)
	}
	if p.UseImplicitN == nil {
		p.UseImplicitN = ptr(true)
	}
	if p.TargetAttribs == nil {
		p.ResetTargetAttribs()
	}
	for i := range p.TargetAttribs {
		r := &p.TargetAttribs[i]
		if r.Use == nil {
			r.Use = ptr(true)
		}
		if r.ApplyTo == "" {
			r.ApplyTo = "points"
		}
		if r.Method == "" {
			r.Method = propagate.Copy.String()
		}
	}
}

// ResetTargetAttribs replaces the request list with the canonical one.
func (p *Params) ResetTargetAttribs() {
	defs := instance.DefaultTargetAttribs()
	p.TargetAttribs = make([]AttribRequest, len(defs))
	for i, d := range defs {
		p.TargetAttribs[i] = AttribRequest{
			Use:     ptr(d.Use),
			ApplyTo: "points",
			Method:  d.Method.String(),
			Pattern: d.Pattern,
		}
	}
}

// ToInstance converts resolved params for an Operation.
func (p *Params) ToInstance() (instance.Params, error) {
	gt, err := instance.ParseGroupType(p.SourceGroupType)
	if err != nil {
		return instance.Params{}, err
	}
	pivot, err := realize.ParsePivot(p.Pivot)
	if err != nil {
		return instance.Params{}, err
	}
	lod := geo.LODFull
	if p.ViewportLOD != "" {
		if lod, err = geo.ParseLOD(p.ViewportLOD); err != nil {
			return instance.Params{}, err
		}
	}
	out := instance.Params{
		SourceGroup:     p.SourceGroup,
		SourceGroupType: gt,
		TargetGroup:     p.TargetGroup,
		UseIDAttrib:     p.UseIDAttrib,
		IDAttrib:        p.IDAttrib,
		Pack:            p.Pack,
		Pivot:           pivot,
		LOD:             lod,
		Transform:       p.Transform == nil || *p.Transform,
		UseImplicitN:    p.UseImplicitN == nil || *p.UseImplicitN,
		TargetAttribs:   make([]instance.AttribRequest, 0, len(p.TargetAttribs)),
	}
	if out.IDAttrib == "" {
		out.IDAttrib = instance.DefaultIDAttrib
	}
	for i, r := range p.TargetAttribs {
		applyTo := geo.Point
		if r.ApplyTo != "" {
			if applyTo, err = geo.ParseOwner(r.ApplyTo); err != nil {
				return instance.Params{}, fmt.Errorf("config: target_attribs[%d]: %w", i, err)
			}
		}
		method := propagate.Copy
		if r.Method != "" {
			if method, err = propagate.ParseMethod(r.Method); err != nil {
				return instance.Params{}, fmt.Errorf("config: target_attribs[%d]: %w", i, err)
			}
		}
		out.TargetAttribs = append(out.TargetAttribs, instance.AttribRequest{
			Use:     r.Use == nil || *r.Use,
			ApplyTo: applyTo,
			Method:  method,
			Pattern: r.Pattern,
		})
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }
