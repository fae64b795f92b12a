package pagecat

import (
	"context"
	"fmt"

	"github.com/shepherd-chms/pagecat/dep"
	"github.com/shepherd-chms/pagecat/events"
)

// Generator reads the page content from a provider and materializes it. The
// read always completes before anything is written.
type Generator struct {
	provider     dep.Provider
	materializer *Materializer
	fallbackName string
	event        events.EventHandler
}

// GeneratorInput is the input structure for NewGenerator.
type GeneratorInput struct {
	Provider     dep.Provider
	Materializer *Materializer
	// FallbackName replaces an unset application name before the default.
	FallbackName string
	// EventHandler receives the run events; optional.
	EventHandler events.EventHandler
}

// RunResult describes a successful run.
type RunResult struct {
	Path    string
	Content Content
	RenderResult
}

// NewGenerator returns a new Generator.
func NewGenerator(i GeneratorInput) *Generator {
	eh := i.EventHandler
	if eh == nil {
		eh = func(events.Event) {}
	}
	return &Generator{
		provider:     i.Provider,
		materializer: i.Materializer,
		fallbackName: i.FallbackName,
		event:        eh,
	}
}

// ID identifies the generator in events.
func (g *Generator) ID() string {
	return fmt.Sprintf("generator(%s)", g.provider)
}

// Run fetches the content and replaces targetPath with the rendered page.
// A *DataRetrievalError means no write was attempted; a *FileWriteError or
// *RenderError means the write did not happen. Either way targetPath keeps
// its previous content.
func (g *Generator) Run(ctx context.Context, targetPath string) (RunResult, error) {
	g.event(events.Trace{ID: g.ID(), Message: "fetching content"})

	content, err := FetchContent(ctx, g.provider, FetchContentInput{
		FallbackName: g.fallbackName,
	})
	if err != nil {
		g.event(events.RetrievalFailed{ID: g.ID(), Error: err})
		return RunResult{}, err
	}
	g.event(events.ContentFetched{
		ID:            g.ID(),
		AppName:       content.AppName,
		PlanCount:     len(content.Plans),
		DefaultedName: content.DefaultedName,
	})

	res, err := g.materializer.Materialize(content.AppName, content.Plans, targetPath)
	if err != nil {
		g.event(events.WriteFailed{ID: g.ID(), Path: targetPath, Error: err})
		return RunResult{}, err
	}
	g.event(events.Rendered{
		ID:          g.ID(),
		Path:        targetPath,
		DidRender:   res.DidRender,
		WouldRender: res.WouldRender,
	})

	return RunResult{
		Path:         targetPath,
		Content:      content,
		RenderResult: res,
	}, nil
}
