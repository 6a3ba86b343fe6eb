// Package caesar implements a Caesar shift over the Spanish alphabet (with Ñ)
// and a plain English one. Input is normalized before shifting: ligatures are
// expanded, diacritics stripped (except the tilde of ñ) and letter case kept.
package caesar

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dyne/caesar/internal/config"
)

// Transform shifts text over the Spanish alphabet.
func Transform(text string, shift int) string {
	return Spanish().Transform(text, shift)
}

// Transform normalizes every character of text and shifts each resulting
// letter by shift positions. Characters outside the alphabet pass through.
// Decrypting is a Transform by -shift and yields Normalize(text).
func (a *Alphabet) Transform(text string, shift int) string {
	if text == "" {
		return ""
	}
	n := a.Len()
	shift %= n
	if shift < 0 {
		shift += n
	}
	cache := map[rune]string{}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		out, ok := cache[r]
		if !ok {
			out = a.shiftRune(r, shift)
			cache[r] = out
		}
		b.WriteString(out)
	}
	return b.String()
}

func (a *Alphabet) shiftRune(r rune, shift int) string {
	seq := normalizeRune(r)
	if seq == "" {
		return string(r)
	}
	upper := a.upperCase(r, seq)
	var b strings.Builder
	for _, base := range seq {
		idx, ok := a.Index(base)
		if !ok {
			if upper {
				base = unicode.ToUpper(base)
			}
			b.WriteRune(base)
			continue
		}
		b.WriteRune(a.letter((idx+shift)%a.Len(), upper))
	}
	return b.String()
}

// upperCase decides the case of r from the alphabet's own letter pairs. Only
// runes the alphabet knows nothing about fall back to unicode.IsUpper.
func (a *Alphabet) upperCase(r rune, seq string) bool {
	for _, base := range seq {
		if upper, known := a.isUpper(base); known {
			return upper
		}
	}
	return unicode.IsUpper(r)
}

// Mode selects the direction of a Cipher.
type Mode string

const (
	ModeEncrypt Mode = "encrypt"
	ModeDecrypt Mode = "decrypt"
)

// ParseMode accepts encrypt or decrypt in any case. Empty means encrypt.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "encrypt":
		return ModeEncrypt, nil
	case "decrypt":
		return ModeDecrypt, nil
	default:
		return "", fmt.Errorf("unknown cipher mode: %s", s)
	}
}

// Cipher is an alphabet, a shift and a direction.
type Cipher struct {
	Alphabet *Alphabet
	Shift    int
	Mode     Mode
}

// DefaultShift is used when neither flags nor config set one.
const DefaultShift = 3

func New(lang string, shift int, mode Mode) (*Cipher, error) {
	a, err := Lookup(lang)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeEncrypt
	}
	return &Cipher{Alphabet: a, Shift: shift, Mode: mode}, nil
}

func (c *Cipher) Encrypt(text string) string {
	return c.Alphabet.Transform(text, c.Shift)
}

// Decrypt reduces the shift before negating it so that math.MinInt cannot
// overflow.
func (c *Cipher) Decrypt(text string) string {
	return c.Alphabet.Transform(text, -(c.Shift % c.Alphabet.Len()))
}

// Apply runs the cipher in its configured direction.
func (c *Cipher) Apply(text string) string {
	if c.Mode == ModeDecrypt {
		return c.Decrypt(text)
	}
	return c.Encrypt(text)
}

func (c *Cipher) String() string {
	return fmt.Sprintf("%s shift=%d lang=%s", c.Mode, c.Shift, c.Alphabet.Name())
}

// Build creates the cipher described by cfg. Unset fields are taken from
// base. A nil cfg yields nil.
func Build(cfg *config.CipherConfig, base *Cipher) (*Cipher, error) {
	if cfg == nil {
		return nil, nil
	}
	if base == nil {
		base = &Cipher{Alphabet: Spanish(), Shift: DefaultShift, Mode: ModeEncrypt}
	}
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		mode = base.Mode
	}
	shift := base.Shift
	if cfg.Shift != nil {
		shift = *cfg.Shift
	}
	a := base.Alphabet
	if cfg.Lang != "" {
		if a, err = Lookup(cfg.Lang); err != nil {
			return nil, err
		}
	}
	return &Cipher{Alphabet: a, Shift: shift, Mode: mode}, nil
}
