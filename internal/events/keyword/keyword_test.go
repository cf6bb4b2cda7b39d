package keyword

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "single", SingleWord.String())
	assert.Equal(t, "phrase", MultiWord.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestCompile_TermKinds(t *testing.T) {
	p, err := Compile([]string{"merger", "  Stock   Buyback  ", ""})
	require.NoError(t, err)

	terms := p.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, Term{Phrase: "merger", Kind: SingleWord, Expr: "merger"}, terms[0])
	assert.Equal(t, Term{Phrase: "stock buyback", Kind: MultiWord, Expr: `stock\s+buyback`}, terms[1])
}

func TestCompile_EscapesLiterals(t *testing.T) {
	p, err := Compile([]string{"s&p 500", "a.b"})
	require.NoError(t, err)

	assert.True(t, p.Match("joins the s&p  500 index"))
	assert.True(t, p.Match("a.b"))
	assert.False(t, p.Match("axb"), "dot must be literal")
}

func TestCompile_Empty(t *testing.T) {
	_, err := Compile(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = Compile([]string{"", "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestPattern_PhraseSpansWhitespace(t *testing.T) {
	p, err := Compile([]string{"stock buyback", "merger"})
	require.NoError(t, err)

	assert.True(t, p.Match("company announces stock   buyback plan"))
	assert.True(t, p.Match("merger talks resume"))
	assert.False(t, p.Match("stockbuyback rumor"))
}

func TestPattern_WordBoundaries(t *testing.T) {
	p, err := Compile([]string{"merger", "ipo"})
	require.NoError(t, err)

	tests := []struct {
		text string
		want bool
	}{
		{"merger", true},
		{"the merger closes", true},
		{"completes merger", true},
		{"mergers and acquisitions", false},
		{"premerger filing", false},
		{"merger_arb fund", false},
		{"files for ipo", true},
		{"hipo", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Match(tt.text))
		})
	}
}

func TestPattern_UnicodeBoundaries(t *testing.T) {
	p, err := Compile([]string{"café"})
	require.NoError(t, err)

	assert.True(t, p.Match("new café opens"))
	assert.True(t, p.Match("café"))
	assert.False(t, p.Match("cafés"))
}

func TestPattern_OnlyDecimalDigitsAreWordChars(t *testing.T) {
	p, err := Compile([]string{"split"})
	require.NoError(t, err)

	assert.True(t, p.Match("stock ½split"))
	assert.True(t, p.Match("split²"))
	assert.False(t, p.Match("stock 3split"))
	assert.False(t, p.Match("split٣"))
}

func TestPattern_CaseSensitiveOnNormalizedText(t *testing.T) {
	p, err := Compile([]string{"Merger"})
	require.NoError(t, err)

	assert.True(t, p.Match("merger"))
	assert.False(t, p.Match("MERGER"), "headlines are lower-cased upstream")
}

func TestPattern_String(t *testing.T) {
	p, err := Compile([]string{"merger"})
	require.NoError(t, err)
	assert.Contains(t, p.String(), "merger")
}

func TestLoad_PlainList(t *testing.T) {
	path := writeFile(t, "keywords.txt", "Stock Buyback\n\n  merger  \n\t\nDividend Cut\n")

	phrases, err := ReadPhrases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stock buyback", "merger", "dividend cut"}, phrases)

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.Match("board approves dividend cut"))
}

func TestLoad_StripsBOM(t *testing.T) {
	path := writeFile(t, "keywords.txt", "\ufeffmerger\nipo\n")

	phrases, err := ReadPhrases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"merger", "ipo"}, phrases)
}

func TestLoad_YAMLTaxonomy(t *testing.T) {
	path := writeFile(t, "taxonomy.yaml", `
capital:
  - Stock Buyback
  - dividend cut
corporate:
  - merger
  - "  spin off  "
`)

	phrases, err := ReadPhrases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stock buyback", "dividend cut", "merger", "spin off"}, phrases)
}

func TestLoad_YAMLNotMapping(t *testing.T) {
	path := writeFile(t, "taxonomy.yml", "- merger\n- ipo\n")

	_, err := ReadPhrases(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoad_NoPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoad_Empty(t *testing.T) {
	for name, content := range map[string]string{
		"empty.txt":  "",
		"blank.txt":  "\n   \n\t\n",
		"empty.yaml": "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, name, content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}
}
