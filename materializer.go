package pagecat

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/shepherd-chms/pagecat/dep"
	"github.com/shepherd-chms/pagecat/tfunc"
)

// MaxFeatures is the number of features shown on a plan card. Further
// entries are left off the page.
const MaxFeatures = 8

// PageData is the data the page template is executed with.
type PageData struct {
	Marker  string
	AppName string
	Year    int
	Plans   []PlanCard
}

// PlanCard is the display form of one plan on the pricing section.
type PlanCard struct {
	ID           string
	DisplayName  string
	Description  string
	MonthlyPrice float64
	YearlyPrice  float64
	Features     []string
	Highlighted  bool
}

// MaterializerInput is the input structure for NewMaterializer.
type MaterializerInput struct {
	// Template replaces the built-in page template.
	Template *Template

	// Currency and Locale configure price formatting of the built-in
	// template. See tfunc.PageInput.
	Currency string
	Locale   string

	// Perms, CreateDestDirs, Force, DryRun and DryStream are passed on to
	// the FileRenderer. See FileRendererInput.
	Perms          os.FileMode
	CreateDestDirs bool
	Force          bool
	DryRun         bool
	DryStream      io.Writer

	// Backup keeps the replaced file as <path>.bak.
	Backup bool

	// Now returns the current time; the footer year is taken from it.
	Now func() time.Time
}

// Materializer renders the page for a set of content and replaces the target
// file with the result.
type Materializer struct {
	tmpl     *Template
	now      func() time.Time
	renderer FileRendererInput
}

// NewMaterializer returns a Materializer. It fails only when the price
// formatting options are invalid.
func NewMaterializer(i MaterializerInput) (*Materializer, error) {
	tmpl := i.Template
	if tmpl == nil {
		funcs, err := tfunc.Page(tfunc.PageInput{
			Currency: i.Currency,
			Locale:   i.Locale,
		})
		if err != nil {
			return nil, err
		}
		tmpl = NewPageTemplate(funcs)
	}

	now := i.Now
	if now == nil {
		now = time.Now
	}

	var backup BackupFunc
	if i.Backup {
		backup = Backup
	}

	return &Materializer{
		tmpl: tmpl,
		now:  now,
		renderer: FileRendererInput{
			CreateDestDirs: i.CreateDestDirs,
			Perms:          i.Perms,
			Backup:         backup,
			Marker:         []byte(GeneratedMarker),
			Force:          i.Force,
			DryRun:         i.DryRun,
			DryStream:      i.DryStream,
		},
	}, nil
}

// PageData binds the identity and plans to the template positions. Plans
// keep their given order.
func (m *Materializer) PageData(identity string, plans []dep.Plan) PageData {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = dep.DefaultAppName
	}

	cards := make([]PlanCard, 0, len(plans))
	for _, p := range plans {
		cards = append(cards, PlanCard{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			Description:  p.Description,
			MonthlyPrice: p.MonthlyPrice,
			YearlyPrice:  p.YearlyPrice,
			Features:     firstFeatures(p.Features, MaxFeatures),
			Highlighted:  p.IsPopular,
		})
	}

	return PageData{
		Marker:  GeneratedMarker,
		AppName: identity,
		Year:    m.now().Year(),
		Plans:   cards,
	}
}

// Execute renders the page without touching the filesystem.
func (m *Materializer) Execute(identity string, plans []dep.Plan) ([]byte, error) {
	contents, err := m.tmpl.Execute(m.PageData(identity, plans))
	if err != nil {
		return nil, &RenderError{Template: m.tmpl.Name(), Err: err}
	}
	return contents, nil
}

// Materialize renders the page and atomically replaces targetPath with it.
// Write failures are returned as a *FileWriteError and leave the previous
// file untouched.
func (m *Materializer) Materialize(
	identity string, plans []dep.Plan, targetPath string,
) (RenderResult, error) {
	contents, err := m.Execute(identity, plans)
	if err != nil {
		return RenderResult{}, err
	}

	ri := m.renderer
	ri.Path = targetPath
	res, err := NewFileRenderer(ri).Render(contents)
	if err != nil {
		return RenderResult{}, &FileWriteError{Path: targetPath, Err: err}
	}
	return res, nil
}

func firstFeatures(features []string, n int) []string {
	if len(features) > n {
		features = features[:n]
	}
	return append([]string{}, features...)
}
