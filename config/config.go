// Package config loads and saves the packsync configuration file.
//
// YAML (.yml, .yaml) and TOML (.toml) files share one layout:
//
//	useauth: false
//	usepack-is-temporary: true
//	usepack-duration: 300
//	packs:
//	  vanilla:
//	    url: https://example.com/vanilla.zip
//	  hd:
//	    url: https://example.com/hd.zip
//	    restricted: true
//	    permission: pack.hd
//	empty: vanilla
//	global:
//	  pack: vanilla
//	worlds:
//	  nether:
//	    pack: vanilla
//	    secondary: [hd]
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/oriumgames/packsync"
)

// Format is the encoding of a configuration file.
type Format int

const (
	YAML Format = iota
	TOML
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than yml, yaml and toml.
	ErrUnsupportedFormat = errors.New("config: unsupported file format")

	// ErrNoPath is returned by Save for a Config that was not loaded from a file.
	ErrNoPath = errors.New("config: no file path")
)

// FormatFor returns the format matching the file extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

// PackConfig is one entry of the packs section.
type PackConfig struct {
	URL        string `mapstructure:"url"`
	Hash       string `mapstructure:"hash"`
	Format     int    `mapstructure:"format"`
	Restricted bool   `mapstructure:"restricted"`
	Permission string `mapstructure:"permission"`
}

// Config is the decoded configuration file.
type Config struct {
	Debug              string `mapstructure:"debug"`
	UseAuth            bool   `mapstructure:"useauth"`
	AutoGenerateHashes bool   `mapstructure:"autogeneratehashes"`
	UsepackIsTemporary bool   `mapstructure:"usepack-is-temporary"`

	// UsepackDuration is the default temporary override length in seconds.
	UsepackDuration    int    `mapstructure:"usepack-duration"`
	StoredPackPriority string `mapstructure:"stored-pack-priority"`
	StoreAppliedPacks  bool   `mapstructure:"store-applied-packs"`

	// Packs is keyed by lowercased pack name.
	Packs map[string]PackConfig `mapstructure:"-"`

	// EmptyRef names the empty pack. EmptyPack is set instead when the empty pack is
	// defined inline.
	EmptyRef  string      `mapstructure:"-"`
	EmptyPack *PackConfig `mapstructure:"-"`

	// Global is the raw global assignment, under GlobalKey ("server" or "global").
	Global    map[string]any `mapstructure:"-"`
	GlobalKey string         `mapstructure:"-"`

	// Scopes holds the raw per-scope assignments, under ScopeKey ("worlds" or "servers").
	Scopes   map[string]map[string]any `mapstructure:"-"`
	ScopeKey string                    `mapstructure:"-"`

	// Warnings collects entries skipped while decoding.
	Warnings []error `mapstructure:"-"`

	path   string
	format Format
}

// Default returns an empty configuration.
func Default() *Config {
	return &Config{
		UsepackIsTemporary: true,
		Packs:              make(map[string]PackConfig),
		Global:             make(map[string]any),
		GlobalKey:          packsync.GlobalScope,
		Scopes:             make(map[string]map[string]any),
		ScopeKey:           "worlds",
	}
}

// Load reads and decodes the file at path.
func Load(path string) (*Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	cfg, err := Decode(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", path)
	}
	cfg.path = path
	return cfg, nil
}

// Decode parses data in the given format.
func Decode(data []byte, format Format) (*Config, error) {
	raw := make(map[string]any)
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case TOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedFormat
	}
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	cfg.format = format
	return cfg, nil
}

// FromMap builds a Config from an already decoded document.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := Default()
	if err := decodeWeak(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "config: options")
	}

	if packs, ok := raw["packs"]; ok {
		section, ok := asMap(packs)
		if !ok {
			cfg.warn("packs", "", fmt.Sprintf("expected a section, got %T", packs))
		}
		for name, value := range section {
			pc, err := decodePack(value)
			if err != nil {
				cfg.warn("packs", name, err.Error())
				continue
			}
			cfg.Packs[strings.ToLower(name)] = pc
		}
	}

	switch empty := raw["empty"].(type) {
	case nil:
	case string:
		cfg.EmptyRef = strings.ToLower(empty)
	default:
		pc, err := decodePack(empty)
		if err != nil {
			cfg.warn("empty", packsync.EmptyPackName, err.Error())
			break
		}
		cfg.EmptyPack = &pc
	}

	// server wins when a file carries both keys.
	for _, key := range []string{"server", packsync.GlobalScope} {
		if value, ok := raw[key]; ok {
			section, ok := asMap(value)
			if !ok {
				cfg.warn(key, "", fmt.Sprintf("expected a section, got %T", value))
				continue
			}
			cfg.Global = section
			cfg.GlobalKey = key
			break
		}
	}

	for _, key := range []string{"worlds", "servers"} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		cfg.ScopeKey = key
		section, ok := asMap(value)
		if !ok {
			cfg.warn(key, "", fmt.Sprintf("expected a section, got %T", value))
			continue
		}
		for name, v := range section {
			scope, ok := asMap(v)
			if !ok {
				cfg.warn(key, name, fmt.Sprintf("expected a section, got %T", v))
				continue
			}
			cfg.Scopes[name] = scope
		}
	}
	return cfg, nil
}

func decodePack(value any) (PackConfig, error) {
	section, ok := asMap(value)
	if !ok {
		return PackConfig{}, fmt.Errorf("expected a section, got %T", value)
	}
	var pc PackConfig
	if err := decodeWeak(section, &pc); err != nil {
		return PackConfig{}, err
	}
	if pc.URL == "" {
		return PackConfig{}, fmt.Errorf("no url")
	}
	return pc, nil
}

func decodeWeak(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// asMap normalises the section types produced by the yaml and toml decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func (c *Config) warn(section, key, reason string) {
	c.Warnings = append(c.Warnings, &packsync.ConfigError{Section: section, Key: key, Reason: reason})
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// SetPath sets the file Save writes to, and its format.
func (c *Config) SetPath(path string) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	c.path, c.format = path, format
	return nil
}

// LogLevel maps the debug option to a slog level. Booleans select debug or info; level
// names are parsed as slog levels.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Debug)) {
	case "", "0", "false", "off":
		return slog.LevelInfo
	case "1", "true", "on":
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Debug)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Settings returns the behavioural options.
func (c *Config) Settings() (packsync.Settings, error) {
	priority, err := packsync.ParseStoredPackPriority(c.StoredPackPriority)
	if err != nil {
		return packsync.DefaultSettings(), err
	}
	return packsync.Settings{
		UseAuth:            c.UseAuth,
		AutoGenerateHashes: c.AutoGenerateHashes,
		UsepackTemporary:   c.UsepackIsTemporary,
		UsepackDuration:    time.Duration(c.UsepackDuration) * time.Second,
		StoredPriority:     priority,
		StoreAppliedPacks:  c.StoreAppliedPacks,
	}, nil
}

// Catalog builds the pack registry and assignments. Invalid entries are skipped and
// returned as warnings, together with the warnings collected while decoding.
func (c *Config) Catalog() (*packsync.Catalog, []error) {
	cat := packsync.NewCatalog()
	warnings := append([]error(nil), c.Warnings...)

	settings, err := c.Settings()
	if err != nil {
		warnings = append(warnings, &packsync.ConfigError{Section: "options", Key: "stored-pack-priority", Reason: "invalid value", Err: err})
	}
	cat.Settings = settings

	for _, name := range sortedKeys(c.Packs) {
		pc := c.Packs[name]
		p := packsync.NewResourcePack(name, pc.URL, pc.Hash, pc.Format, pc.Restricted, pc.Permission)
		if err := cat.Packs.AddPack(p); err != nil {
			warnings = append(warnings, &packsync.ConfigError{Section: "packs", Key: name, Reason: "not registered", Err: err})
		}
	}

	switch {
	case c.EmptyPack != nil:
		pc := c.EmptyPack
		p := packsync.NewResourcePack(packsync.EmptyPackName, pc.URL, pc.Hash, pc.Format, pc.Restricted, pc.Permission)
		if err := cat.Packs.AddPack(p); err != nil {
			warnings = append(warnings, &packsync.ConfigError{Section: "empty", Key: packsync.EmptyPackName, Reason: "not registered", Err: err})
		} else {
			_ = cat.Packs.SetEmptyPack(p)
		}
	case c.EmptyRef != "":
		if p, ok := cat.Packs.PackByName(c.EmptyRef); ok {
			_ = cat.Packs.SetEmptyPack(p)
		} else {
			warnings = append(warnings, &packsync.UnknownPackReferenceError{
				Assignment: "empty",
				Pack:       c.EmptyRef,
				Suggestion: cat.Packs.Suggest(c.EmptyRef),
			})
		}
	}

	global, w := packsync.LoadAssignment(packsync.GlobalScope, c.Global)
	warnings = append(warnings, w...)
	warnings = append(warnings, unknownReferences(cat.Packs, global)...)
	cat.Assignments.SetGlobalAssignment(global)

	for _, name := range sortedKeys(c.Scopes) {
		a, w := packsync.LoadAssignment(name, c.Scopes[name])
		warnings = append(warnings, w...)
		warnings = append(warnings, unknownReferences(cat.Packs, a)...)
		cat.Assignments.AddAssignment(a)
	}
	return cat, warnings
}

func unknownReferences(packs *packsync.PackRegistry, a *packsync.PackAssignment) []error {
	var names []string
	if a.Pack() != "" {
		names = append(names, a.Pack())
	}
	for _, e := range a.Secondary() {
		names = append(names, e.Pack)
	}

	var errs []error
	for _, name := range names {
		if _, ok := packs.PackByName(name); !ok {
			errs = append(errs, &packsync.UnknownPackReferenceError{
				Assignment: a.Name(),
				Pack:       name,
				Suggestion: packs.Suggest(name),
			})
		}
	}
	return errs
}

// Apply copies the packs and assignments of cat back into the config, so Save persists
// regenerated hashes and edited assignments.
func (c *Config) Apply(cat *packsync.Catalog) {
	empty := cat.Packs.EmptyPack()
	inline := c.EmptyPack != nil

	c.Packs = make(map[string]PackConfig)
	for _, p := range cat.Packs.Packs() {
		pc := packConfig(p)
		if inline && empty != nil && strings.EqualFold(p.Name(), empty.Name()) {
			c.EmptyPack = &pc
			continue
		}
		c.Packs[strings.ToLower(p.Name())] = pc
	}
	if !inline && empty != nil {
		c.EmptyRef = strings.ToLower(empty.Name())
	}

	c.Global = cat.Assignments.GlobalAssignment().Serialize()
	c.Scopes = make(map[string]map[string]any)
	for _, a := range cat.Assignments.Assignments() {
		c.Scopes[a.Name()] = a.Serialize()
	}
}

func packConfig(p *packsync.ResourcePack) PackConfig {
	pc := PackConfig{
		URL:        p.URL(),
		Hash:       p.RawHash(),
		Format:     p.Format(),
		Restricted: p.Restricted(),
		Permission: p.Permission(),
	}
	if pc.Permission == packsync.DefaultPermissionPrefix+p.Name() {
		pc.Permission = ""
	}
	return pc
}

// Map returns the document form of the config, as written by Save.
func (c *Config) Map() map[string]any {
	doc := map[string]any{
		"useauth":              c.UseAuth,
		"autogeneratehashes":   c.AutoGenerateHashes,
		"usepack-is-temporary": c.UsepackIsTemporary,
		"store-applied-packs":  c.StoreAppliedPacks,
	}
	if c.Debug != "" {
		doc["debug"] = c.Debug
	}
	if c.UsepackDuration != 0 {
		doc["usepack-duration"] = c.UsepackDuration
	}
	if c.StoredPackPriority != "" {
		doc["stored-pack-priority"] = c.StoredPackPriority
	}

	packs := make(map[string]any, len(c.Packs))
	for name, pc := range c.Packs {
		packs[name] = packMap(pc)
	}
	doc["packs"] = packs

	switch {
	case c.EmptyPack != nil:
		doc["empty"] = packMap(*c.EmptyPack)
	case c.EmptyRef != "":
		doc["empty"] = c.EmptyRef
	}

	if len(c.Global) > 0 {
		key := c.GlobalKey
		if key == "" {
			key = packsync.GlobalScope
		}
		doc[key] = c.Global
	}
	if len(c.Scopes) > 0 {
		scopes := make(map[string]any, len(c.Scopes))
		for name, a := range c.Scopes {
			scopes[name] = a
		}
		doc[c.ScopeKey] = scopes
	}
	return doc
}

func packMap(pc PackConfig) map[string]any {
	m := map[string]any{"url": pc.URL}
	if pc.Hash != "" {
		m["hash"] = pc.Hash
	}
	if pc.Format != 0 {
		m["format"] = pc.Format
	}
	if pc.Restricted {
		m["restricted"] = true
	}
	if pc.Permission != "" {
		m["permission"] = pc.Permission
	}
	return m
}

// Encode serializes the config in the given format.
func (c *Config) Encode(format Format) ([]byte, error) {
	doc := c.Map()
	switch format {
	case YAML:
		return yaml.Marshal(doc)
	case TOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Save writes the config back to its file. The file is replaced atomically.
func (c *Config) Save() error {
	if c.path == "" {
		return ErrNoPath
	}
	data, err := c.Encode(c.format)
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}

	tmp := c.path + ".tmp." + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "config: write %s", tmp)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "config: replace %s", c.path)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
