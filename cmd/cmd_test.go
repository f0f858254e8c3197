package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProfileFromYAML(t *testing.T) {
	cv := writeFile(t, "cv.txt", "  Zehn Jahre Backend Entwicklung.\n")
	path := writeFile(t, "profile.yaml", `
full_name: Anna Muster
location: Berlin
skills: [Go, PostgreSQL, go, " Kubernetes "]
cv_file: `+cv+`
locales: [de, en]
work_history:
  - title: Backend Engineer
    organization: ACME GmbH
    start: "2019"
`)

	var in profileFile
	require.NoError(t, readYAML(path, &in))

	profile, err := in.toProfile(&models.User{ID: "user-1", Email: "anna@example.org"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", profile.UserID)
	assert.Equal(t, "anna@example.org", profile.Email)
	assert.Equal(t, "Zehn Jahre Backend Entwicklung.", profile.CVText)
	assert.Equal(t, []string{"go", "postgresql", "kubernetes"}, []string(profile.Skills))
	assert.Equal(t, []models.Locale{models.LocaleDE, models.LocaleEN}, []models.Locale(profile.Locales))
	require.Len(t, profile.WorkHistory, 1)
	assert.Equal(t, "ACME GmbH", profile.WorkHistory[0].Organization)
}

func TestProfileMissingCVFile(t *testing.T) {
	in := profileFile{CVFile: filepath.Join(t.TempDir(), "missing.txt")}
	_, err := in.toProfile(&models.User{ID: "user-1"})
	require.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := writeFile(t, "messages.yaml", `
- message_id: m-1
  sender: jobs@stepstone.de
  subject: "Neue Stelle: Go Entwickler"
  body: Anforderungen Go, Docker
  received_at: 2026-03-01T09:00:00Z
- message_id: m-2
  subject: Absage
  body: Leider müssen wir Ihnen mitteilen
  attachments: ["Mit freundlichen Grüßen"]
`)

	src := fileSource{path: path}
	assert.Equal(t, "file", src.Name())

	raws, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "m-1", raws[0].MessageID)
	assert.Equal(t, "jobs@stepstone.de", raws[0].Sender)
	assert.Equal(t, time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC), raws[0].ReceivedAt)
	assert.Equal(t, []string{"Mit freundlichen Grüßen"}, raws[1].Attachments)
	assert.True(t, raws[1].ReceivedAt.IsZero())
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := fileSource{path: filepath.Join(t.TempDir(), "none.yaml")}.Fetch(context.Background())
	require.Error(t, err)
}
