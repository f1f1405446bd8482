// Package inifile reads and writes the small INI dialect used by critq.ini:
// [section] headers, key = value pairs, and # or ; comment lines.
package inifile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// File represents a parsed INI file.
type File struct {
	Sections []Section
}

// Section represents a named section in an INI file.
type Section struct {
	Name   string     // e.g., "render", "log"
	Values []KeyValue // preserves order
}

// KeyValue represents a key-value pair.
type KeyValue struct {
	Key   string
	Value string
	Line  int // 1-based source line; zero for values added with Set
}

// SyntaxError reports a line that is neither a section, a pair nor a
// comment.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parse reads an INI file from the given reader.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	var current *Section

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "unterminated section header"}
			}
			name := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if name == "" {
				return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "empty section name"}
			}
			current = f.section(name, true)
			continue
		}

		if current == nil {
			return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "key outside of a section"}
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "expected key = value"}
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "empty key"}
		}
		value, err := unquote(strings.TrimSpace(value))
		if err != nil {
			return nil, &SyntaxError{Line: lineNo, Text: line, Msg: err.Error()}
		}
		current.Values = append(current.Values, KeyValue{Key: key, Value: value, Line: lineNo})
	}

	return f, scanner.Err()
}

// unquote strips one level of double quotes so values may carry leading or
// trailing spaces and comment characters.
func unquote(v string) (string, error) {
	if !strings.HasPrefix(v, `"`) {
		return v, nil
	}
	s, err := strconv.Unquote(v)
	if err != nil {
		return "", fmt.Errorf("bad quoted value")
	}
	return s, nil
}

// section finds a section by lowercase name, appending it when create is
// set. Repeated headers merge into the first section of that name.
func (f *File) section(name string, create bool) *Section {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	if !create {
		return nil
	}
	f.Sections = append(f.Sections, Section{Name: name})
	return &f.Sections[len(f.Sections)-1]
}

// Section returns the section with the given name (case-insensitive).
func (f *File) Section(name string) *Section {
	return f.section(strings.ToLower(name), false)
}

// Get returns the last value for a key in a section.
func (f *File) Get(section, key string) string {
	s := f.Section(section)
	if s == nil {
		return ""
	}
	return s.Get(key)
}

// Lookup returns the last value for a key in a section and whether the key
// was present.
func (f *File) Lookup(section, key string) (KeyValue, bool) {
	s := f.Section(section)
	if s == nil {
		return KeyValue{}, false
	}
	return s.Lookup(key)
}

// Get returns the last value for a key (case-insensitive).
func (s *Section) Get(key string) string {
	kv, _ := s.Lookup(key)
	return kv.Value
}

// Lookup returns the last pair for key (case-insensitive).
func (s *Section) Lookup(key string) (KeyValue, bool) {
	key = strings.ToLower(key)
	var result KeyValue
	found := false
	for _, kv := range s.Values {
		if kv.Key == key {
			result = kv
			found = true
		}
	}
	return result, found
}

// Keys returns the distinct keys of the section in first-seen order.
func (s *Section) Keys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, kv := range s.Values {
		if !seen[kv.Key] {
			seen[kv.Key] = true
			keys = append(keys, kv.Key)
		}
	}
	return keys
}

// Set sets a key-value pair in the specified section.
// If the section doesn't exist, it is created.
// If the key already exists, its value is replaced.
func (f *File) Set(section, key, value string) {
	s := f.section(strings.ToLower(section), true)
	key = strings.ToLower(key)

	for i := range s.Values {
		if s.Values[i].Key == key {
			s.Values[i].Value = value
			return
		}
	}
	s.Values = append(s.Values, KeyValue{Key: key, Value: value})
}

// Write serializes the INI file to the given writer. Values that would not
// survive a round trip are quoted.
func (f *File) Write(w io.Writer) error {
	for i, section := range f.Sections {
		if _, err := fmt.Fprintf(w, "[%s]\n", section.Name); err != nil {
			return err
		}

		for _, kv := range section.Values {
			if _, err := fmt.Fprintf(w, "%s = %s\n", kv.Key, quoteIfNeeded(kv.Value)); err != nil {
				return err
			}
		}

		// Blank line between sections (but not after the last one)
		if i < len(f.Sections)-1 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func quoteIfNeeded(v string) string {
	if v != strings.TrimSpace(v) || strings.HasPrefix(v, `"`) || strings.ContainsAny(v, "\n\r") {
		return strconv.Quote(v)
	}
	return v
}
