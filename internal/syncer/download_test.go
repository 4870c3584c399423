package syncer

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractRoutesEntriesThroughMappings(t *testing.T) {
	pkg, ok := PackageByID("efatura")
	require.True(t, ok)

	archive := buildZip(t, map[string]string{
		"e-FaturaPaketi/xsdruntime/UBL-Invoice-2.1.xsd":        "<xs:schema/>",
		"e-FaturaPaketi/schematron/UBL-TR_Main_Schematron.xml": "<schema/>",
		"e-FaturaPaketi/xslt/general.xslt":                     "<xsl/>",
		"e-FaturaPaketi/kilavuz.pdf":                           "%PDF",
	})

	files, err := Extract(pkg, archive)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Equal(t, "<xs:schema/>", string(files["validator/ubl-tr-package/schema/UBL-Invoice-2.1.xsd"]))
	assert.Equal(t, "<schema/>", string(files["validator/ubl-tr-package/schematron/UBL-TR_Main_Schematron.xml"]))
	assert.Equal(t, "<xsl/>", string(files["xslt/gib/efatura/general.xslt"]))
}

func TestExtractRejectsNonZip(t *testing.T) {
	pkg, _ := PackageByID("efatura")
	_, err := Extract(pkg, []byte("definitely not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a ZIP")
}

func TestExtractNoMappedFiles(t *testing.T) {
	pkg, _ := PackageByID("efatura")
	archive := buildZip(t, map[string]string{"readme.txt": "hi"})
	_, err := Extract(pkg, archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mapped files")
}

func TestExtractSkipsTraversalEntries(t *testing.T) {
	pkg, _ := PackageByID("efatura")
	archive := buildZip(t, map[string]string{
		"../../evil.xsd": "bad",
		"ok/good.xsd":    "good",
	})

	files, err := Extract(pkg, archive)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "validator/ubl-tr-package/schema/good.xsd")
}

func TestFetchDownloadsAndExtracts(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"paket/maindoc/UBL-Invoice-2.1.xsd": "<xs:schema/>",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	pkg, _ := PackageByID("ubltr-xsd")
	pkg.URL = srv.URL

	d := NewDownloader(30 * time.Second)
	files, err := d.Fetch(context.Background(), pkg)
	require.NoError(t, err)
	assert.Contains(t, files, "validator/ubl-tr-package/schema/maindoc/UBL-Invoice-2.1.xsd")
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pkg, _ := PackageByID("efatura")
	pkg.URL = srv.URL

	d := NewDownloader(30 * time.Second)
	_, err := d.Fetch(context.Background(), pkg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"**/*.xsd", "a/b/c/file.xsd", true},
		{"**/*.xsd", "file.xsd", true},
		{"**/*.xsd", "a/file.xslt", false},
		{"**/maindoc/*.xsd", "paket/maindoc/UBL-Invoice-2.1.xsd", true},
		{"**/maindoc/*.xsd", "paket/common/UBL-Invoice-2.1.xsd", false},
		{"*.xsd", "a/file.xsd", false},
		{"**/UBL-TR_Main_Schematron.xml", "x/y/UBL-TR_Main_Schematron.xml", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchGlob(c.pattern, c.name), "%s vs %s", c.pattern, c.name)
	}
}
