// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmccurley/cryptobib/internal/bib"
	"github.com/kmccurley/cryptobib/pkg/types"
)

const corpus = `
@proceedings{C08,
  key =          "CRYPTO 2008",
  booktitle =    "Advances in Cryptology -- CRYPTO 2008",
  publisher =    "Springer",
  year =         "2008",
}

@InProceedings{C:BarJacMit08,
  author =       {Boaz Barak and {\"O}zil, Jacob and Mitchell von Neumann},
  title =        "Foo {Bar}",
  pages =        "1--10",
  crossref =     "C08",
}

@inproceedings{C:Has08,
  author =       "Has Doi",
  title =        "Has a DOI",
  year =         "2008",
  doi =          "10.1007/978-3-540-85174-5_2",
}

@Article{JC:Doe09,
  author =       "Jane Doe",
  title =        "A Journal Paper",
  journal =      "Journal of Cryptology",
  year =         "2009",
}

@misc{ePrint:Foo08,
  author =       "Foo",
  title =        "Not a paper type",
  year =         "2008",
}
`

func loadCorpus(t *testing.T) *bib.Bibliography {
	t.Helper()
	b, err := bib.Parse(strings.NewReader(corpus))
	require.NoError(t, err)
	b.ExpandCrossref()
	return b
}

func TestDetect(t *testing.T) {
	records := Detect(loadCorpus(t))
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "C:BarJacMit08", r.Key)
	assert.Equal(t, types.EntryInproceedings, r.EntryType)
	assert.Equal(t, "Foo Bar", r.Title)
	assert.Equal(t, "2008", r.Year, "year inherited through crossref")
	assert.Equal(t, []string{"Boaz Barak", "Jacob Özil", "Mitchell von Neumann"}, r.Authors)
	assert.Equal(t, "1-10", r.Fields["pages"])
	assert.Equal(t, "Springer", r.Fields["publisher"])
	assert.Equal(t, "Advances in Cryptology - CRYPTO 2008", r.Fields["booktitle"])

	assert.Equal(t, "JC:Doe09", records[1].Key)
	assert.Equal(t, types.EntryArticle, records[1].EntryType)
}

func TestDetectNeverEmitsDOIEntries(t *testing.T) {
	b := loadCorpus(t)
	withDOI := map[string]bool{}
	for _, e := range b.Entries {
		if _, ok := e.Field("doi"); ok {
			withDOI[e.Key] = true
		}
	}
	require.NotEmpty(t, withDOI)

	for _, r := range Detect(b) {
		assert.False(t, withDOI[r.Key], "record %s carries a doi", r.Key)
		assert.Empty(t, r.DOI)
	}
}

func TestDetectEmpty(t *testing.T) {
	b, err := bib.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, Detect(b))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Detect(b)))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteReadFile(t *testing.T) {
	records := Detect(loadCorpus(t))

	path := filepath.Join(t.TempDir(), "bads.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, records))
	require.NoError(t, f.Close())

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bibkey": "C:BarJacMit08"`)
	assert.Contains(t, string(data), `"entry_type": "inproceedings"`)
}

func TestReadFileErrors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = ReadFile(bad)
	assert.Error(t, err)
}
