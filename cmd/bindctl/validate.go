package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ettle/strcase"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

type validateCmd struct {
	Manifest string `arg:"" type:"existingfile" help:"Path to the manifest YAML/JSON file."`
}

func (cmd *validateCmd) Run(_ context.Context) error {
	doc, err := binding.ReadManifest(cmd.Manifest)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, doc)
	return nil
}

func printSummary(w io.Writer, doc *binding.ManifestDocument) {
	name := doc.Name
	if name == "" {
		name = doc.Source
	}
	fmt.Fprintf(w, "✓ %s is valid (version %s)\n", name, doc.Version)
	fmt.Fprintf(w, "  renderers: %d, providers: %d, widgets: %d\n", len(doc.Renderers), len(doc.Providers), len(doc.Widgets))
	registry := binding.NewProviderRegistry()
	if providers, err := providersFor(doc, ""); err == nil {
		registry = binding.NewProviderRegistry(providers...)
	}
	for _, renderer := range doc.Renderers {
		var missing []string
		for _, shape := range renderer.CompatibleDataShapes {
			if len(registry.FindByDataType(shape)) == 0 {
				missing = append(missing, string(shape))
			}
		}
		line := fmt.Sprintf("  - %s (%s)", displayName(renderer), renderer.TypeID)
		if len(missing) > 0 {
			line += " no provider for " + strings.Join(missing, ", ")
		}
		fmt.Fprintln(w, line)
	}
}

func displayName(renderer binding.Renderer) string {
	if renderer.Name != "" {
		return renderer.Name
	}
	parts := strings.Split(renderer.TypeID, ".")
	return strcase.ToCase(parts[len(parts)-1], strcase.TitleCase, ' ')
}
