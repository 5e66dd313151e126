package binding

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	manifestVersionV1 = "1"
	// ManifestVersion exposes the current manifest format version for tooling.
	ManifestVersion = manifestVersionV1
)

//go:embed schema/manifest.schema.json
var manifestSchemaJSON []byte

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

// ManifestDocument models a YAML/JSON manifest describing renderers,
// simulated providers and the widgets to bind.
type ManifestDocument struct {
	Version      string             `json:"version" yaml:"version"`
	Name         string             `json:"name,omitempty" yaml:"name,omitempty"`
	Renderers    []Renderer         `json:"renderers,omitempty" yaml:"renderers,omitempty"`
	Providers    []ManifestProvider `json:"providers,omitempty" yaml:"providers,omitempty"`
	Widgets      []WidgetInstance   `json:"widgets,omitempty" yaml:"widgets,omitempty"`
	Entitlements []string           `json:"entitlements,omitempty" yaml:"entitlements,omitempty"`
	Source       string             `json:"-" yaml:"-"`
}

// ManifestProvider declares a provider the host builds from the manifest.
type ManifestProvider struct {
	SourceID     string        `json:"source_id" yaml:"source_id"`
	DataType     DataShape     `json:"data_type" yaml:"data_type"`
	Priority     string        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Interval     time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	Entitlements []string      `json:"entitlements,omitempty" yaml:"entitlements,omitempty"`
	Unavailable  bool          `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
	// URL makes the provider poll a remote endpoint instead of simulating values.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// FailAfter makes the provider fail after emitting that many values. Zero never fails.
	FailAfter int   `json:"fail_after,omitempty" yaml:"fail_after,omitempty"`
	Values    []any `json:"values,omitempty" yaml:"values,omitempty"`
}

// Spec converts the manifest entry into a ProviderSpec. Priority defaults to
// simulated.
func (p ManifestProvider) Spec() (ProviderSpec, error) {
	priority := PrioritySimulated
	if p.Priority != "" {
		parsed, err := ParsePriority(p.Priority)
		if err != nil {
			return ProviderSpec{}, err
		}
		priority = parsed
	}
	return ProviderSpec{
		SourceID:     p.SourceID,
		DataType:     p.DataType,
		Priority:     priority,
		Entitlements: append([]string(nil), p.Entitlements...),
		Unavailable:  p.Unavailable,
	}, nil
}

// LoadManifestFile reads a manifest from disk and registers its renderers.
func (r *StaticWidgetRegistry) LoadManifestFile(path string) (*ManifestDocument, error) {
	doc, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := r.LoadManifestDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReadManifest loads a manifest file from disk without registering it.
func ReadManifest(path string) (*ManifestDocument, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("binding: open manifest %s: %w", path, err)
	}
	defer f.Close()
	doc, err := DecodeManifest(f)
	if err != nil {
		return nil, fmt.Errorf("binding: decode manifest %s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// DecodeManifest reads a manifest from any reader. The raw document is checked
// against the embedded JSON schema before it is decoded.
func DecodeManifest(r io.Reader) (*ManifestDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("binding: read manifest: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("binding: manifest is empty")
	}
	if err := validateManifestSchema(data); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc ManifestDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("binding: manifest is empty")
		}
		return nil, fmt.Errorf("binding: parse manifest: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate ensures the manifest is internally consistent.
func (doc *ManifestDocument) Validate() error {
	if doc.Version != manifestVersionV1 {
		return fmt.Errorf("binding: unsupported manifest version %q", doc.Version)
	}
	renderers := make(map[string]struct{}, len(doc.Renderers))
	for idx, renderer := range doc.Renderers {
		if renderer.TypeID == "" {
			return fmt.Errorf("binding: manifest renderer at index %d is missing type_id", idx)
		}
		if _, exists := renderers[renderer.TypeID]; exists {
			return fmt.Errorf("binding: manifest duplicates renderer %s", renderer.TypeID)
		}
		renderers[renderer.TypeID] = struct{}{}
	}
	for idx, provider := range doc.Providers {
		if provider.SourceID == "" || provider.DataType == "" {
			return fmt.Errorf("binding: manifest provider at index %d needs source_id and data_type", idx)
		}
		if _, err := provider.Spec(); err != nil {
			return fmt.Errorf("binding: manifest provider %s: %w", provider.SourceID, err)
		}
		if provider.Interval < 0 {
			return fmt.Errorf("binding: manifest provider %s has negative interval", provider.SourceID)
		}
	}
	widgets := make(map[string]struct{}, len(doc.Widgets))
	for _, widget := range doc.Widgets {
		if _, exists := widgets[widget.ID]; exists {
			return fmt.Errorf("binding: manifest duplicates widget %s", widget.ID)
		}
		widgets[widget.ID] = struct{}{}
		if _, ok := renderers[widget.TypeID]; !ok {
			return fmt.Errorf("%w: widget %s uses %s", ErrRendererMissing, widget.ID, widget.TypeID)
		}
	}
	return nil
}

func (doc *ManifestDocument) applyDefaults() {
	if doc.Version == "" {
		doc.Version = manifestVersionV1
	}
	for i := range doc.Widgets {
		if doc.Widgets[i].ID == "" {
			doc.Widgets[i].ID = uuid.NewString()
		}
	}
}

func validateManifestSchema(data []byte) error {
	schema, err := compiledManifestSchema()
	if err != nil {
		return err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("binding: parse manifest: %w", err)
	}
	// round trip through JSON so the validator sees JSON types
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("binding: normalize manifest: %w", err)
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return fmt.Errorf("binding: normalize manifest: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("binding: manifest failed validation: %w", err)
	}
	return nil
}

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		const name = "manifest.schema.json"
		if err := compiler.AddResource(name, bytes.NewReader(manifestSchemaJSON)); err != nil {
			manifestSchemaErr = fmt.Errorf("binding: load manifest schema: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = compiler.Compile(name)
		if manifestSchemaErr != nil {
			manifestSchemaErr = fmt.Errorf("binding: compile manifest schema: %w", manifestSchemaErr)
		}
	})
	return manifestSchema, manifestSchemaErr
}
