package csvimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/storage/memory"
)

func TestParseGermanSemicolonFile(t *testing.T) {
	input := "\ufeffFirma;Stelle;Anforderungen;Standort;Gehalt\n" +
		"ACME GmbH;Backend Entwickler;\"Go, PostgreSQL\nKubernetes\";Berlin;65.000 €\n" +
		"\n" +
		"Beta AG;Data Engineer;Python;München;\n"

	jobs, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "ACME GmbH", jobs[0].Company)
	assert.Equal(t, "Backend Entwickler", jobs[0].Role)
	assert.Equal(t, "Go, PostgreSQL\nKubernetes", jobs[0].Requirements)
	assert.Equal(t, "Berlin", jobs[0].Location)
	assert.Equal(t, "65.000 €", jobs[0].Compensation)
	assert.Equal(t, models.SourceBulkImport, jobs[0].Source)
	assert.Equal(t, "München", jobs[1].Location)
	assert.Empty(t, jobs[1].Compensation)
}

func TestParseCollectsRowErrors(t *testing.T) {
	input := "company,role,url\n" +
		"ACME,Backend Engineer,https://acme.example/jobs/1\n" +
		",Frontend Engineer,\n" +
		"Beta,,\n" +
		"Gamma,SRE,\n"

	jobs, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://acme.example/jobs/1", jobs[0].URL)
	assert.Equal(t, "SRE", jobs[1].Role)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)

	var rowErr *RowError
	require.True(t, errors.As(errs[0], &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.Contains(t, errs[0].Error(), "company is required")
	assert.Contains(t, errs[1].Error(), "row 4: role is required")
}

func TestParseRejectsBadHeaders(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"missing":   "company,location\nACME,Berlin\n",
		"duplicate": "company,firma,role\nA,B,C\n",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			require.Error(t, err)
			var rowErr *RowError
			assert.False(t, errors.As(err, &rowErr))
		})
	}
}

func TestImporterStoresValidRows(t *testing.T) {
	store := memory.New()
	importer := NewImporter(store, nil)

	input := "title,company,requirements\nGo Developer,ACME,Go\nNo Company,,\n"
	res, err := importer.Import(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Created, 1)
	assert.Equal(t, 1, res.Failed)

	job, err := store.GetJob(context.Background(), res.Created[0])
	require.NoError(t, err)
	assert.Equal(t, "Go Developer", job.Role)
	assert.Equal(t, "Go", job.Requirements)
}

func TestImporterFailsOnHeaderErrors(t *testing.T) {
	importer := NewImporter(memory.New(), nil)

	res, err := importer.Import(context.Background(), strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	assert.Nil(t, res)
}
