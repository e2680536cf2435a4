// Model catalog - capability metadata for known models.
//
// Information Hiding:
// - Where capability data comes from (embedded YAML, optional override file)
// - Model identifier normalization ("provider/model" vs bare names)

package llm

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ModelInfo is the capability metadata of one model.
type ModelInfo struct {
	ID               string `yaml:"id" json:"id"`
	Provider         string `yaml:"provider" json:"provider"`
	DisplayName      string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	MaxInputTokens   int    `yaml:"max_input_tokens,omitempty" json:"max_input_tokens,omitempty"`
	MaxOutputTokens  int    `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`
	SupportsPDFInput bool   `yaml:"supports_pdf_input" json:"supports_pdf_input"`
	SupportsVision   bool   `yaml:"supports_vision" json:"supports_vision"`
}

// Descriptor returns the listing view of the model.
func (m ModelInfo) Descriptor() ModelDescriptor {
	return ModelDescriptor{ID: m.ID, Provider: m.Provider, DisplayName: m.DisplayName}
}

// Capability is the outcome of a capability lookup. Known is false when no
// metadata exists for the model; Reason then says why. Local and TextOnly
// describe the serving provider and are set whether or not the model is known.
type Capability struct {
	Info     ModelInfo
	Known    bool
	Local    bool
	TextOnly bool // provider endpoint cannot carry file parts
	Reason   string
}

// CapabilitySource answers capability questions about models.
type CapabilitySource interface {
	Capability(model string) Capability
}

type providerEntry struct {
	Local       bool  `yaml:"local"`
	NativeFiles *bool `yaml:"native_files"`
}

type catalogFile struct {
	Providers map[string]providerEntry `yaml:"providers"`
	Models    []ModelInfo              `yaml:"models"`
}

// Catalog is an in-memory model catalog. It is read-only once built and safe
// for concurrent use.
type Catalog struct {
	providers map[string]providerEntry
	models    map[string]ModelInfo // keyed by provider + "/" + id
	order     []string
}

// DefaultCatalog returns the catalog shipped with the package.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog returns the embedded catalog, extended and overridden by the
// YAML file at path when path is non-empty.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	override, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	c.Merge(override)
	return c, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	c := &Catalog{
		providers: make(map[string]providerEntry),
		models:    make(map[string]ModelInfo),
	}
	for name, p := range f.Providers {
		c.providers[name] = p
	}
	for i, m := range f.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model %d: id and provider are required", i)
		}
		c.add(m)
	}
	return c, nil
}

func (c *Catalog) add(m ModelInfo) {
	key := m.Provider + "/" + m.ID
	if _, exists := c.models[key]; !exists {
		c.order = append(c.order, key)
	}
	c.models[key] = m
	if _, ok := c.providers[m.Provider]; !ok {
		c.providers[m.Provider] = providerEntry{}
	}
}

// Merge copies every provider and model of other into c, replacing entries
// with the same identity.
func (c *Catalog) Merge(other *Catalog) {
	for name, p := range other.providers {
		c.providers[name] = p
	}
	for _, key := range other.order {
		c.add(other.models[key])
	}
}

// Lookup finds the metadata of a "provider/model" or bare model identifier.
// Bare names match the first catalog entry with that id.
func (c *Catalog) Lookup(model string) (ModelInfo, bool) {
	provider, name := SplitModel(model)
	if provider != "" {
		m, ok := c.models[provider+"/"+name]
		return m, ok
	}
	for _, key := range c.order {
		if m := c.models[key]; m.ID == name {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Capability implements CapabilitySource.
func (c *Catalog) Capability(model string) Capability {
	provider, _ := SplitModel(model)
	info, ok := c.Lookup(model)
	if ok {
		provider = info.Provider
	}

	capability := Capability{
		Info:     info,
		Known:    ok,
		Local:    c.IsLocal(provider),
		TextOnly: !c.AcceptsFiles(provider),
	}
	if !ok {
		capability.Info.ID = model
		capability.Info.Provider = provider
		capability.Reason = fmt.Sprintf("model %q is not in the catalog", model)
	}
	return capability
}

// IsLocal reports whether the provider runs on the local machine.
func (c *Catalog) IsLocal(provider string) bool {
	return c.providers[provider].Local
}

// AcceptsFiles reports whether the provider's endpoint can carry file
// attachments. Providers default to true unless marked native_files: false.
func (c *Catalog) AcceptsFiles(provider string) bool {
	if native := c.providers[provider].NativeFiles; native != nil {
		return *native
	}
	return true
}

// Providers returns the catalog's provider names, sorted.
func (c *Catalog) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelsByProvider lists the catalog models of a provider in catalog order.
// The boolean is false when the provider is unknown.
func (c *Catalog) ModelsByProvider(provider string) ([]ModelDescriptor, bool) {
	if _, ok := c.providers[provider]; !ok {
		return nil, false
	}
	models := []ModelDescriptor{}
	for _, key := range c.order {
		if m := c.models[key]; m.Provider == provider {
			models = append(models, m.Descriptor())
		}
	}
	return models, true
}

// Verify Catalog implements CapabilitySource
var _ CapabilitySource = (*Catalog)(nil)
