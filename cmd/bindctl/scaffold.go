package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ettle/strcase"
	"gopkg.in/yaml.v3"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type scaffoldCmd struct {
	TypeID       string        `required:"" name:"type-id" help:"Renderer type id (e.g. vehicle.speedometer)."`
	Name         string        `help:"Display name for the renderer (defaults to the type id in title case)."`
	Shape        []string      `required:"" help:"Data shapes the renderer consumes (use multiple --shape flags)."`
	Entitlement  []string      `help:"Entitlements unlocking the renderer (any of)."`
	Setup        []string      `help:"Widget settings required before the renderer binds data."`
	ManifestPath string        `required:"" name:"manifest" type:"path" help:"Path to the manifest YAML file to update."`
	Provider     bool          `default:"true" negatable:"" help:"Also add a simulated provider per shape without one."`
	Priority     string        `default:"simulated" enum:"hardware,device_sensor,network,simulated" help:"Priority of scaffolded providers."`
	Interval     time.Duration `default:"250ms" help:"Tick interval of scaffolded providers."`
	Overwrite    bool          `help:"Replace an existing renderer entry."`
}

func (cmd *scaffoldCmd) Run(_ context.Context) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	path, err := filepath.Abs(cmd.ManifestPath)
	if err != nil {
		return fmt.Errorf("bindctl: resolve manifest path: %w", err)
	}
	doc, err := loadOrInitManifest(path)
	if err != nil {
		return err
	}

	renderer := binding.Renderer{
		TypeID:                 cmd.TypeID,
		Name:                   cmd.Name,
		RequiredAnyEntitlement: cmd.Entitlement,
	}
	for _, key := range cmd.Setup {
		renderer.Setup = append(renderer.Setup, strcase.ToSnake(key))
	}
	if renderer.Name == "" {
		renderer.Name = displayName(renderer)
	}
	for _, shape := range cmd.Shape {
		renderer.CompatibleDataShapes = append(renderer.CompatibleDataShapes, binding.DataShape(strcase.ToSnake(shape)))
	}

	replaced := false
	for idx := range doc.Renderers {
		if doc.Renderers[idx].TypeID != cmd.TypeID {
			continue
		}
		if !cmd.Overwrite {
			return fmt.Errorf("bindctl: manifest already defines renderer %s (use --overwrite to replace)", cmd.TypeID)
		}
		doc.Renderers[idx] = renderer
		replaced = true
	}
	if !replaced {
		doc.Renderers = append(doc.Renderers, renderer)
	}
	sort.Slice(doc.Renderers, func(i, j int) bool { return doc.Renderers[i].TypeID < doc.Renderers[j].TypeID })

	added := 0
	if cmd.Provider {
		added = cmd.addProviders(doc, renderer.CompatibleDataShapes)
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := writeManifest(path, doc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Added %s to %s (%d provider(s) scaffolded)\n", cmd.TypeID, path, added)
	return nil
}

func (cmd *scaffoldCmd) addProviders(doc *binding.ManifestDocument, shapes []binding.DataShape) int {
	served := map[binding.DataShape]struct{}{}
	for _, p := range doc.Providers {
		served[p.DataType] = struct{}{}
	}
	added := 0
	for _, shape := range shapes {
		if _, ok := served[shape]; ok {
			continue
		}
		doc.Providers = append(doc.Providers, binding.ManifestProvider{
			SourceID: "sim." + strcase.ToKebab(string(shape)),
			DataType: shape,
			Priority: cmd.Priority,
			Interval: cmd.Interval,
		})
		served[shape] = struct{}{}
		added++
	}
	return added
}

func (cmd *scaffoldCmd) validate() error {
	if strings.TrimSpace(cmd.TypeID) == "" {
		return errors.New("bindctl: type id is required")
	}
	if strings.ContainsAny(cmd.TypeID, " /") {
		return fmt.Errorf("bindctl: type id %q must not contain spaces or slashes", cmd.TypeID)
	}
	return nil
}

func loadOrInitManifest(path string) (*binding.ManifestDocument, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &binding.ManifestDocument{Version: binding.ManifestVersion, Source: path}, nil
		}
		return nil, fmt.Errorf("bindctl: stat manifest: %w", err)
	}
	return binding.ReadManifest(path)
}

func writeManifest(path string, doc *binding.ManifestDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bindctl: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("bindctl: create manifest %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("bindctl: write manifest: %w", err)
	}
	return nil
}
