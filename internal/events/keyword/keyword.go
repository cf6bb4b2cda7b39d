// Package keyword compiles the curated headline taxonomy into a single
// matcher and filters enriched events by it.
package keyword

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

// ErrConfig reports a missing, unreadable, or empty keyword source.
var ErrConfig = eris.New("keyword: invalid keyword source")

// Kind distinguishes single-word terms from multi-word phrases.
type Kind int

const (
	SingleWord Kind = iota + 1
	MultiWord
)

// String returns the human-readable kind.
func (k Kind) String() string {
	switch k {
	case SingleWord:
		return "single"
	case MultiWord:
		return "phrase"
	default:
		return "unknown"
	}
}

// Term is one compiled taxonomy entry.
type Term struct {
	Phrase string
	Kind   Kind
	Expr   string
}

// wordClass is the set of characters that count as part of a word. It is
// the Unicode counterpart of \w, so boundaries work for non-ASCII headlines.
const wordClass = `\p{L}\p{M}\p{Nd}_`

const (
	boundaryStart = `(?:^|[^` + wordClass + `])`
	boundaryEnd   = `(?:[^` + wordClass + `]|$)`
)

// Pattern is the combined alternation of every term. It is immutable after
// Compile and safe for concurrent use.
type Pattern struct {
	terms []Term
	re    *regexp.Regexp
}

// Compile builds one term per phrase and combines them into a Pattern.
// Phrases are trimmed and lower-cased; blank phrases are skipped.
func Compile(phrases []string) (*Pattern, error) {
	var terms []Term
	var exprs []string
	for _, p := range phrases {
		words := strings.Fields(strings.ToLower(p))
		if len(words) == 0 {
			continue
		}

		var t Term
		if len(words) > 1 {
			t = compilePhrase(words)
		} else {
			t = compileWord(words[0])
		}
		terms = append(terms, t)
		exprs = append(exprs, t.Expr)
	}

	if len(terms) == 0 {
		return nil, eris.Wrap(ErrConfig, "keyword: no phrases to compile")
	}

	re, err := regexp.Compile(boundaryStart + `(?:` + strings.Join(exprs, `|`) + `)` + boundaryEnd)
	if err != nil {
		return nil, eris.Wrap(err, "keyword: compile pattern")
	}
	return &Pattern{terms: terms, re: re}, nil
}

// compileWord builds a literal single-word term.
func compileWord(word string) Term {
	return Term{Phrase: word, Kind: SingleWord, Expr: regexp.QuoteMeta(word)}
}

// compilePhrase builds a term whose words may be separated by any run of whitespace.
func compilePhrase(words []string) Term {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return Term{
		Phrase: strings.Join(words, " "),
		Kind:   MultiWord,
		Expr:   strings.Join(quoted, `\s+`),
	}
}

// Match reports whether text contains at least one term.
func (p *Pattern) Match(text string) bool {
	return p.re.MatchString(text)
}

// Terms returns a copy of the compiled terms in source order.
func (p *Pattern) Terms() []Term {
	out := make([]Term, len(p.terms))
	copy(out, p.terms)
	return out
}

// String returns the combined regular expression.
func (p *Pattern) String() string {
	return p.re.String()
}

// Load reads and compiles the keyword source at path. Files ending in .yaml
// or .yml hold a category -> phrases map; anything else is a plain list with
// one phrase per line.
func Load(path string) (*Pattern, error) {
	phrases, err := ReadPhrases(path)
	if err != nil {
		return nil, err
	}
	return Compile(phrases)
}

// ReadPhrases returns the trimmed, lower-cased, non-blank phrases in path.
func ReadPhrases(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.Wrap(ErrConfig, "keyword: no keyword path configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrConfig, "keyword: open %s: %v", path, err)
	}
	defer f.Close() //nolint:errcheck

	// Strip a UTF-8 BOM left behind by spreadsheet exports.
	r := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var phrases []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		phrases, err = parseTaxonomy(r)
	default:
		phrases, err = parseList(r)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrConfig, "keyword: read %s: %v", path, err)
	}

	if len(phrases) == 0 {
		return nil, eris.Wrapf(ErrConfig, "keyword: %s contains no phrases", path)
	}
	return phrases, nil
}

// parseList reads one phrase per line.
func parseList(r io.Reader) ([]string, error) {
	var phrases []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if p := cleanPhrase(sc.Text()); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases, sc.Err()
}

// parseTaxonomy flattens a YAML mapping of category -> phrases in document order.
func parseTaxonomy(r io.Reader) ([]string, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, eris.New("taxonomy must be a mapping of category to phrases")
	}

	var phrases []string
	for i := 1; i < len(root.Content); i += 2 {
		var list []string
		if err := root.Content[i].Decode(&list); err != nil {
			return nil, eris.Wrapf(err, "category %q", root.Content[i-1].Value)
		}
		for _, p := range list {
			if p = cleanPhrase(p); p != "" {
				phrases = append(phrases, p)
			}
		}
	}
	return phrases, nil
}

func cleanPhrase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
