package pagecat

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-chms/pagecat/dep"
)

var cardRe = regexp.MustCompile(`data-plan-id=\{"([^"]*)"\}`)

type card struct {
	id   string
	body string
}

// parseCards splits the pricing section of a rendered page into its cards.
func parseCards(t *testing.T, page string) []card {
	t.Helper()
	start := strings.Index(page, `<section id="pricing"`)
	end := strings.Index(page, "{/* Testimonials Section */}")
	require.True(t, start >= 0 && end > start, "pricing section not found")
	pricing := page[start:end]

	locs := cardRe.FindAllStringSubmatchIndex(pricing, -1)
	cards := make([]card, 0, len(locs))
	for i, loc := range locs {
		stop := len(pricing)
		if i+1 < len(locs) {
			stop = locs[i+1][0]
		}
		cards = append(cards, card{
			id:   pricing[loc[2]:loc[3]],
			body: pricing[loc[0]:stop],
		})
	}
	return cards
}

func newTestMaterializer(t *testing.T, i MaterializerInput) *Materializer {
	t.Helper()
	if i.Now == nil {
		i.Now = fixedClock(2026)
	}
	m, err := NewMaterializer(i)
	require.NoError(t, err)
	return m
}

func TestMaterializer_Cards(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, MaterializerInput{})
	out, err := m.Execute("Acme", testPlans())
	require.NoError(t, err)

	cards := parseCards(t, string(out))
	require.Len(t, cards, 3)
	assert.Equal(t, "basic", cards[0].id)
	assert.Equal(t, "standard", cards[1].id)
	assert.Equal(t, "premium", cards[2].id)

	t.Run("feature_cap", func(t *testing.T) {
		basic := cards[0].body
		assert.Equal(t, MaxFeatures, strings.Count(basic, "<li key="))
		for _, f := range features(10)[:MaxFeatures] {
			assert.Contains(t, basic, `{"`+f+`"}`)
		}
		assert.NotContains(t, basic, "Feature number 09")
		assert.NotContains(t, basic, "Feature number 10")
	})

	t.Run("short_feature_list", func(t *testing.T) {
		standard := cards[1].body
		assert.Equal(t, 3, strings.Count(standard, "<li key="))
		for _, f := range features(3) {
			assert.Contains(t, standard, `{"`+f+`"}`)
		}
	})

	t.Run("empty_feature_list", func(t *testing.T) {
		premium := cards[2].body
		assert.Equal(t, 0, strings.Count(premium, "<li key="))
		assert.Contains(t, premium, "<ul className=\"space-y-3 mb-8\">\n                </ul>")
	})

	t.Run("highlight", func(t *testing.T) {
		assert.NotContains(t, cards[0].body, "MOST POPULAR")
		assert.Contains(t, cards[1].body, "MOST POPULAR")
		assert.Contains(t, cards[1].body, "ring-2 ring-blue-600")
		assert.NotContains(t, cards[2].body, "MOST POPULAR")
	})

	t.Run("prices", func(t *testing.T) {
		assert.Contains(t, cards[0].body, `{"KES 2,500"}`)
		assert.Contains(t, cards[0].body, `Billed annually as {"KES 24,000"}`)
		assert.Contains(t, cards[2].body, `{"KES 10,000"}`)
		assert.Contains(t, cards[2].body, `Billed annually as {"KES 96,000"}`)
	})

	t.Run("text", func(t *testing.T) {
		assert.Contains(t, cards[1].body, `{"Standard Plan"}`)
		assert.Contains(t, cards[1].body, `{"Ideal for growing churches"}`)
	})
}

func TestMaterializer_InputOrderKept(t *testing.T) {
	t.Parallel()

	plans := testPlans()
	plans[0], plans[2] = plans[2], plans[0]

	m := newTestMaterializer(t, MaterializerInput{})
	out, err := m.Execute("Acme", plans)
	require.NoError(t, err)

	cards := parseCards(t, string(out))
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"premium", "standard", "basic"},
		[]string{cards[0].id, cards[1].id, cards[2].id})
}

func TestMaterializer_NoPlans(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, MaterializerInput{})
	for _, plans := range [][]dep.Plan{nil, {}} {
		out, err := m.Execute("Acme", plans)
		require.NoError(t, err)

		page := string(out)
		assert.Empty(t, parseCards(t, page))
		assert.Contains(t, page, `<section id="pricing"`)
		assert.Contains(t, page,
			"<div className=\"grid grid-cols-1 md:grid-cols-3 gap-8 max-w-6xl mx-auto\">\n          </div>")
	}
}

func TestMaterializer_Identity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		identity string
		e        string
	}{
		{"configured", "East Gate Chapel", `{"East Gate Chapel"}`},
		{"default", "", `{"Shepherd"}`},
		{"blank", "   ", `{"Shepherd"}`},
		{"escaped", `Grace "Chapel" {x} <b>`, `{"Grace \"Chapel\" {x} \u003cb\u003e"}`},
	}

	m := newTestMaterializer(t, MaterializerInput{})
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			out, err := m.Execute(tc.identity, nil)
			require.NoError(t, err)
			page := string(out)

			assert.Equal(t, 5, strings.Count(page, tc.e))
			assert.Contains(t, page, tc.e+" is the all-in-one operating system")
			assert.Contains(t, page, "directly within "+tc.e+".")
			assert.Contains(t, page, "saying about "+tc.e)
			assert.Contains(t, page, "Join hundreds of churches using "+tc.e)
			assert.Contains(t, page, "© 2026 "+tc.e+". All rights reserved.")
		})
	}
}

func TestMaterializer_Year(t *testing.T) {
	t.Parallel()

	m2026 := newTestMaterializer(t, MaterializerInput{Now: fixedClock(2026)})
	m2027 := newTestMaterializer(t, MaterializerInput{Now: fixedClock(2027)})

	a, err := m2026.Execute("Acme", testPlans())
	require.NoError(t, err)
	b, err := m2027.Execute("Acme", testPlans())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, string(b), strings.Replace(string(a), "© 2026 ", "© 2027 ", 1))
}

func TestMaterializer_Idempotent(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, MaterializerInput{})
	path := filepath.Join(t.TempDir(), "page.tsx")

	res, err := m.Materialize("Acme", testPlans(), path)
	require.NoError(t, err)
	assert.True(t, res.DidRender)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err = m.Materialize("Acme", testPlans(), path)
	require.NoError(t, err)
	assert.False(t, res.DidRender)
	assert.True(t, res.WouldRender)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, bytes.HasPrefix(first, []byte(GeneratedMarker+"\n")))
}

func TestMaterializer_Replace(t *testing.T) {
	t.Parallel()

	m := newTestMaterializer(t, MaterializerInput{})
	path := filepath.Join(t.TempDir(), "page.tsx")

	_, err := m.Materialize("First", testPlans(), path)
	require.NoError(t, err)
	res, err := m.Materialize("Second", testPlans()[:1], path)
	require.NoError(t, err)
	assert.True(t, res.DidRender)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `{"First"}`)
	assert.Len(t, parseCards(t, string(out)), 1)
}

func TestMaterializer_WriteErrors(t *testing.T) {
	t.Run("missing_parent_dir", func(t *testing.T) {
		m := newTestMaterializer(t, MaterializerInput{})
		path := filepath.Join(t.TempDir(), "missing", "page.tsx")

		_, err := m.Materialize("Acme", testPlans(), path)
		var fwe *FileWriteError
		require.True(t, errors.As(err, &fwe), "expected FileWriteError, got %v", err)
		assert.Equal(t, path, fwe.Path)
		assert.True(t, errors.Is(err, errNoParentDir))

		_, statErr := os.Stat(filepath.Dir(path))
		assert.True(t, os.IsNotExist(statErr), "no fallback directory may be created")
	})

	t.Run("create_dest_dirs", func(t *testing.T) {
		m := newTestMaterializer(t, MaterializerInput{CreateDestDirs: true})
		path := filepath.Join(t.TempDir(), "app", "page.tsx")

		_, err := m.Materialize("Acme", testPlans(), path)
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("read_only_dir", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permissions are not enforced for root")
		}
		dir := t.TempDir()
		require.NoError(t, os.Chmod(dir, 0500))
		defer os.Chmod(dir, 0700)

		m := newTestMaterializer(t, MaterializerInput{})
		_, err := m.Materialize("Acme", testPlans(), filepath.Join(dir, "page.tsx"))
		var fwe *FileWriteError
		assert.True(t, errors.As(err, &fwe))
	})

	t.Run("unmanaged_destination", func(t *testing.T) {
		path := writeFile(t, "page.tsx", []byte("export default function Page() {}\n"), 0644)

		m := newTestMaterializer(t, MaterializerInput{})
		_, err := m.Materialize("Acme", testPlans(), path)
		assert.True(t, errors.Is(err, ErrUnmanagedDest))

		forced := newTestMaterializer(t, MaterializerInput{Force: true})
		_, err = forced.Materialize("Acme", testPlans(), path)
		assert.NoError(t, err)
	})

	t.Run("interrupted_write_keeps_previous_file", func(t *testing.T) {
		m := newTestMaterializer(t, MaterializerInput{})
		path := filepath.Join(t.TempDir(), "page.tsx")
		_, err := m.Materialize("Before", testPlans(), path)
		require.NoError(t, err)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		renameFile = func(string, string) error { return errors.New("disk full") }
		defer func() { renameFile = os.Rename }()

		_, err = m.Materialize("After", testPlans(), path)
		var fwe *FileWriteError
		require.True(t, errors.As(err, &fwe))

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file left behind")
	})
}

func TestMaterializer_RenderError(t *testing.T) {
	m := newTestMaterializer(t, MaterializerInput{
		Template: NewTemplate(TemplateInput{
			Name:          "broken",
			Contents:      "{{ .Missing }}",
			ErrMissingKey: true,
		}),
	})
	path := filepath.Join(t.TempDir(), "page.tsx")

	_, err := m.Materialize("Acme", nil, path)
	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "broken", re.Template)
	assert.NoFileExists(t, path)
}

func TestMaterializer_BadLocale(t *testing.T) {
	_, err := NewMaterializer(MaterializerInput{Locale: "??"})
	assert.Error(t, err)
}

func TestMaterializer_Backup(t *testing.T) {
	m := newTestMaterializer(t, MaterializerInput{Backup: true})
	path := filepath.Join(t.TempDir(), "page.tsx")

	_, err := m.Materialize("First", nil, path)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = m.Materialize("Second", nil, path)
	require.NoError(t, err)

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, first, bak)
}

func TestMaterializer_DryRun(t *testing.T) {
	var out bytes.Buffer
	m := newTestMaterializer(t, MaterializerInput{DryRun: true, DryStream: &out})
	path := filepath.Join(t.TempDir(), "page.tsx")

	res, err := m.Materialize("Acme", testPlans(), path)
	require.NoError(t, err)
	assert.False(t, res.DidRender)
	assert.True(t, res.WouldRender)
	assert.NoFileExists(t, path)
	assert.Len(t, parseCards(t, out.String()), 3)
}

// A reader polling the target while it is replaced must always see one of
// the complete versions.
func TestMaterializer_AtomicReplace(t *testing.T) {
	m := newTestMaterializer(t, MaterializerInput{})
	path := filepath.Join(t.TempDir(), "page.tsx")

	versionA, err := m.Execute("Version A", testPlans())
	require.NoError(t, err)
	versionB, err := m.Execute("Version B", testPlans()[:1])
	require.NoError(t, err)

	_, err = m.Materialize("Version A", testPlans(), path)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	var torn []int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			got, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if !bytes.Equal(got, versionA) && !bytes.Equal(got, versionB) {
				torn = append(torn, len(got))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			_, err = m.Materialize("Version B", testPlans()[:1], path)
		} else {
			_, err = m.Materialize("Version A", testPlans(), path)
		}
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	assert.Empty(t, torn, "reader observed a partial file")
}
