package who

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date_reported,Country\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data", "cases.csv")
	f := NewFetcher()
	if err := f.Download(srv.URL, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	body, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(body) != "Date_reported,Country\n" {
		t.Errorf("body = %q", body)
	}
}

func TestDownloadNotFoundIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher()
	if err := f.Download(srv.URL, filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error for 404")
	}
	// Client errors must not be retried.
	if calls != 1 {
		t.Errorf("server hit %d times, want 1", calls)
	}
}

func TestExtractShapefileArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "ne.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, member := range []string{"ne_50m_admin_0_countries.shp", "ne_50m_admin_0_countries.dbf", "ne_50m_admin_0_countries.prj"} {
		w, err := zw.Create(member)
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		w.Write([]byte(member))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.WriteFile(zipPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}

	shpPath, err := extractShapefileArchive(zipPath, dir)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if filepath.Base(shpPath) != "ne_50m_admin_0_countries.shp" {
		t.Errorf("shp path = %q", shpPath)
	}
	for _, sidecar := range []string{"ne_50m_admin_0_countries.dbf", "ne_50m_admin_0_countries.prj"} {
		if _, err := os.Stat(filepath.Join(dir, sidecar)); err != nil {
			t.Errorf("sidecar %s not extracted: %v", sidecar, err)
		}
	}
}

func TestExtractShapefileArchiveNoShp(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "ne.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("no shapefile here"))
	zw.Close()
	if err := os.WriteFile(zipPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}

	if _, err := extractShapefileArchive(zipPath, dir); err == nil {
		t.Fatal("expected error for archive without .shp member")
	}
}

func TestNaturalEarthURL(t *testing.T) {
	got := NaturalEarthURL("50m")
	want := "https://naciscdn.org/naturalearth/50m/cultural/ne_50m_admin_0_countries.zip"
	if got != want {
		t.Errorf("NaturalEarthURL = %q, want %q", got, want)
	}
}
