package caesar

import (
	"fmt"
	"sort"
	"strings"
)

// Alphabet is an ordered set of case-paired letters. Lowercase forms are the
// lookup keys; an index is only defined for letters of the alphabet.
type Alphabet struct {
	name  string
	upper []rune
	lower []rune
	index map[rune]int
	cased map[rune]bool
}

// DefaultLang is used when no language is requested.
const DefaultLang = "es"

var registry = map[string]*Alphabet{}

func init() {
	register(newAlphabet("es", "ABCDEFGHIJKLMNÑOPQRSTUVWXYZ", "abcdefghijklmnñopqrstuvwxyz"))
	register(newAlphabet("en", "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "abcdefghijklmnopqrstuvwxyz"))
}

func newAlphabet(name, upper, lower string) *Alphabet {
	a := &Alphabet{
		name:  name,
		upper: []rune(upper),
		lower: []rune(lower),
		index: map[rune]int{},
		cased: map[rune]bool{},
	}
	if len(a.upper) != len(a.lower) {
		panic(fmt.Sprintf("caesar: alphabet %s has unpaired letters", name))
	}
	for i, r := range a.lower {
		a.index[r] = i
		a.index[a.upper[i]] = i
		a.cased[r] = false
		a.cased[a.upper[i]] = true
	}
	return a
}

func register(a *Alphabet) {
	registry[a.name] = a
}

// Lookup returns the alphabet registered for lang. An empty lang selects
// DefaultLang.
func Lookup(lang string) (*Alphabet, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		key = DefaultLang
	}
	a, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown alphabet %q (available: %s)", lang, strings.Join(Langs(), ", "))
	}
	return a, nil
}

// Langs lists the registered alphabet names in sorted order.
func Langs() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Spanish returns the 27 letter alphabet (A..N, Ñ, O..Z).
func Spanish() *Alphabet { return registry["es"] }

// English returns the 26 letter alphabet.
func English() *Alphabet { return registry["en"] }

func (a *Alphabet) Name() string { return a.name }

func (a *Alphabet) Len() int { return len(a.lower) }

// Index reports the position of r in the alphabet, ignoring case.
func (a *Alphabet) Index(r rune) (int, bool) {
	i, ok := a.index[r]
	return i, ok
}

// isUpper reports whether r is the uppercase form of one of the alphabet's
// letters. known is false for runes the alphabet does not pair.
func (a *Alphabet) isUpper(r rune) (upper, known bool) {
	upper, known = a.cased[r]
	return upper, known
}

func (a *Alphabet) letter(i int, upper bool) rune {
	if upper {
		return a.upper[i]
	}
	return a.lower[i]
}
