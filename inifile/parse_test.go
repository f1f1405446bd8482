package inifile

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		f, err := Parse(strings.NewReader(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(f.Sections) != 0 {
			t.Errorf("expected empty sections, got %d", len(f.Sections))
		}
	})

	t.Run("sections and keys", func(t *testing.T) {
		ini := "[render]\ndialect = mysql\nversion = 8.0.36\n\n[db]\nurl = sqlite:///tmp/app.db\n"
		f, err := Parse(strings.NewReader(ini))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Get("render", "dialect"); got != "mysql" {
			t.Errorf("render.dialect: got %q, want %q", got, "mysql")
		}
		if got := f.Get("render", "version"); got != "8.0.36" {
			t.Errorf("render.version: got %q, want %q", got, "8.0.36")
		}
		if got := f.Get("db", "url"); got != "sqlite:///tmp/app.db" {
			t.Errorf("db.url: got %q", got)
		}
	})

	t.Run("comments", func(t *testing.T) {
		ini := "# comment\n; another\n[log]\n  # indented comment\nlevel = debug\n"
		f, err := Parse(strings.NewReader(ini))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Get("log", "level"); got != "debug" {
			t.Errorf("got %q, want %q", got, "debug")
		}
	})

	t.Run("value containing equals", func(t *testing.T) {
		ini := "[db]\nurl = postgres://u@h/db?sslmode=disable\n"
		f, err := Parse(strings.NewReader(ini))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Get("db", "url"); got != "postgres://u@h/db?sslmode=disable" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("quoted value", func(t *testing.T) {
		ini := "[render]\nseparator = \" # \"\n"
		f, err := Parse(strings.NewReader(ini))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Get("render", "separator"); got != " # " {
			t.Errorf("got %q, want %q", got, " # ")
		}
	})

	t.Run("last value wins and repeated headers merge", func(t *testing.T) {
		ini := "[log]\nlevel = info\n[db]\nurl = x\n[LOG]\nlevel = warn\n"
		f, err := Parse(strings.NewReader(ini))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(f.Sections) != 2 {
			t.Fatalf("expected 2 sections, got %d", len(f.Sections))
		}
		kv, ok := f.Lookup("log", "level")
		if !ok || kv.Value != "warn" || kv.Line != 6 {
			t.Errorf("got %+v, %v", kv, ok)
		}
	})

	t.Run("case insensitive names", func(t *testing.T) {
		f, err := Parse(strings.NewReader("[Render]\nDialect = SQLite\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Get("RENDER", "dialect"); got != "SQLite" {
			t.Errorf("got %q, want %q (values keep their case)", got, "SQLite")
		}
	})
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		ini  string
		line int
		msg  string
	}{
		{name: "unterminated header", ini: "[render\n", line: 1, msg: "unterminated section header"},
		{name: "empty header", ini: "[ ]\n", line: 1, msg: "empty section name"},
		{name: "key before section", ini: "# hi\nlevel = info\n", line: 2, msg: "key outside of a section"},
		{name: "missing equals", ini: "[log]\nlevel info\n", line: 2, msg: "expected key = value"},
		{name: "empty key", ini: "[log]\n= info\n", line: 2, msg: "empty key"},
		{name: "bad quote", ini: "[log]\nlevel = \"info\n", line: 2, msg: "bad quoted value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.ini))
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if se.Line != tt.line || se.Msg != tt.msg {
				t.Errorf("got line %d %q, want line %d %q", se.Line, se.Msg, tt.line, tt.msg)
			}
		})
	}
}

func TestSection(t *testing.T) {
	f, err := Parse(strings.NewReader("[render]\ndialect = pg\nversion = 16\ndialect = mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := f.Section("render")
	if s == nil {
		t.Fatal("expected section")
	}
	if got := s.Keys(); !reflect.DeepEqual(got, []string{"dialect", "version"}) {
		t.Errorf("Keys() = %v", got)
	}
	if f.Section("missing") != nil {
		t.Error("expected nil for a missing section")
	}
	if got := f.Get("missing", "key"); got != "" {
		t.Errorf("got %q for a missing section", got)
	}
	if _, ok := f.Lookup("render", "nope"); ok {
		t.Error("Lookup reported a missing key")
	}
}

func TestSet(t *testing.T) {
	f := &File{}
	f.Set("Render", "Dialect", "sqlite")
	f.Set("render", "dialect", "mysql")
	f.Set("log", "level", "warn")

	if len(f.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(f.Sections))
	}
	if got := f.Get("render", "dialect"); got != "mysql" {
		t.Errorf("got %q, want %q", got, "mysql")
	}
	if n := len(f.Section("render").Values); n != 1 {
		t.Errorf("Set should replace, got %d values", n)
	}
}

func TestWrite(t *testing.T) {
	f := &File{}
	f.Set("render", "dialect", "postgres")
	f.Set("render", "separator", " | ")
	f.Set("log", "level", "info")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[render]\ndialect = postgres\nseparator = \" | \"\n\n[log]\nlevel = info\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRoundTrip(t *testing.T) {
	f := &File{}
	f.Set("render", "dialect", "mysql")
	f.Set("render", "version", "8.0.36")
	f.Set("render", "note", "\"quoted\" and  spaced ")
	f.Set("db", "url", "mysql://root@localhost:3306/app")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, s := range f.Sections {
		for _, kv := range s.Values {
			if got := back.Get(s.Name, kv.Key); got != kv.Value {
				t.Errorf("%s.%s: got %q, want %q", s.Name, kv.Key, got, kv.Value)
			}
		}
	}
}
