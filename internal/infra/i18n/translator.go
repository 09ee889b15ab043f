package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator holds the messages of one language.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator reads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the message for key, formatted with args. Unknown keys are
// returned as-is.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Lang() string { return t.lang }

// Catalog picks a Translator for an Accept-Language header. The first
// language given to NewCatalog is the fallback.
type Catalog struct {
	matcher     language.Matcher
	translators []*Translator
}

func NewCatalog(fsys fs.FS, langs ...string) (*Catalog, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("i18n: at least one language is required")
	}
	c := &Catalog{}
	tags := make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("i18n: language %q: %w", l, err)
		}
		t, err := NewTranslator(fsys, l)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
		c.translators = append(c.translators, t)
	}
	c.matcher = language.NewMatcher(tags)
	return c, nil
}

// For matches an Accept-Language value; malformed or empty headers get the fallback.
func (c *Catalog) For(acceptLanguage string) *Translator {
	if acceptLanguage == "" {
		return c.translators[0]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.translators[0]
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.translators[0]
	}
	return c.translators[idx]
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default is the embedded English/Persian catalogue.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(LocalesFS, "en", "fa")
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
