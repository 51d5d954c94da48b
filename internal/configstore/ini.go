package configstore

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/v2"
	"gopkg.in/ini.v1"
)

func init() {
	// Emit "key=value" instead of the aligned "key = value" form.
	ini.PrettyFormat = false
}

// loadOptions hand values over verbatim; quoting is resolved by decodeValue.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
	SkipUnrecognizableLines: true,
}

// encodeValue double-quotes values that would not read back verbatim.
func encodeValue(v string) string {
	if v == "" {
		return v
	}
	quoted := strconv.Quote(v)
	if quoted[1:len(quoted)-1] != v || strings.TrimSpace(v) != v || strings.ContainsAny(v, "\"'`#;") {
		return quoted
	}
	return v
}

// decodeValue reverses encodeValue. Hand-edited values in single or double
// quotes lose the quotes, like npm's own ini reader does.
func decodeValue(v string) string {
	if len(v) < 2 {
		return v
	}
	switch {
	case v[0] == '"' && v[len(v)-1] == '"':
		if unquoted, err := strconv.Unquote(v); err == nil {
			return unquoted
		}
		return v[1 : len(v)-1]
	case v[0] == '\'' && v[len(v)-1] == '\'':
		return v[1 : len(v)-1]
	}
	return v
}

// iniParser implements koanf.Parser for flat INI documents.
// Keys of named sections are nested under the section name.
type iniParser struct{}

// Compile-time check to ensure iniParser implements koanf.Parser
var _ koanf.Parser = iniParser{}

// Unmarshal parses INI bytes into a (possibly nested) map.
func (iniParser) Unmarshal(b []byte) (map[string]any, error) {
	f, err := ini.LoadSources(loadOptions, b)
	if err != nil {
		return nil, fmt.Errorf("parsing ini: %w", err)
	}

	out := make(map[string]any)
	for _, section := range f.Sections() {
		values := make(map[string]any, len(section.Keys()))
		for _, key := range section.Keys() {
			values[key.Name()] = decodeValue(key.Value())
		}

		if section.Name() == ini.DefaultSection {
			for k, v := range values {
				out[k] = v
			}
			continue
		}
		if len(values) > 0 {
			out[section.Name()] = values
		}
	}

	return out, nil
}

// Marshal serializes a flat map into INI bytes with keys sorted.
// Nested maps become named sections.
func (iniParser) Marshal(m map[string]any) ([]byte, error) {
	f := ini.Empty(loadOptions)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if nested, ok := m[k].(map[string]any); ok {
			section, err := f.NewSection(k)
			if err != nil {
				return nil, fmt.Errorf("creating section %q: %w", k, err)
			}
			if err := writeKeys(section, nested); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := f.Section(ini.DefaultSection).NewKey(k, encodeValue(fmt.Sprint(m[k]))); err != nil {
			return nil, fmt.Errorf("writing key %q: %w", k, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding ini: %w", err)
	}
	return buf.Bytes(), nil
}

func writeKeys(section *ini.Section, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := section.NewKey(k, encodeValue(fmt.Sprint(m[k]))); err != nil {
			return fmt.Errorf("writing key %q: %w", k, err)
		}
	}
	return nil
}
