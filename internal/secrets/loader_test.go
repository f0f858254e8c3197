package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(Source{Name: "api key", Value: "inline", File: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("BEWERBUNGS_TEST_SECRET", " env-value ")

	got, err := Load(Source{Name: "token", Env: "BEWERBUNGS_TEST_SECRET"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "env-value" {
		t.Fatalf("expected env value, got %q", got)
	}

	got, err = Load(Source{Name: "token", Value: "inline", Env: "BEWERBUNGS_TEST_SECRET"})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline value to win over env, got %q %v", got, err)
	}
}

func TestLoadErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{name: "nothing", src: Source{Name: "dsn"}, want: "dsn is not configured"},
		{name: "empty file", src: Source{Name: "dsn", File: empty}, want: "is empty"},
		{name: "missing file", src: Source{Name: "dsn", File: filepath.Join(t.TempDir(), "nope")}, want: "reading dsn"},
		{name: "unset env", src: Source{Name: "dsn", Env: "BEWERBUNGS_TEST_UNSET"}, want: "set BEWERBUNGS_TEST_UNSET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	got, err := Optional(Source{Name: "telegram token", Env: "BEWERBUNGS_TEST_UNSET"})
	if err != nil || got != "" {
		t.Fatalf("expected empty optional secret, got %q %v", got, err)
	}
}
