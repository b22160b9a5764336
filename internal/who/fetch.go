package who

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hmgu-urban/covid19-cartograms/internal/httputil"
)

const (
	CasesURL        = "https://covid19.who.int/WHO-COVID-19-global-data.csv"
	VaccinationsURL = "https://covid19.who.int/who-data/vaccination-data.csv"

	naturalEarthURL = "https://naciscdn.org/naturalearth/%s/cultural/ne_%s_admin_0_countries.zip"
)

// NaturalEarthURL returns the download URL for the admin-0 countries archive
// at the given scale ("110m", "50m" or "10m").
func NaturalEarthURL(scale string) string {
	return fmt.Sprintf(naturalEarthURL, scale, scale)
}

// Fetcher downloads the source datasets over HTTPS with retry.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: httputil.NewClient()}
}

// Download fetches url into destPath, creating parent directories as needed.
// Transient failures (5xx, connection resets) are retried with exponential
// backoff; client errors abort immediately.
func (f *Fetcher) Download(url, destPath string) error {
	var body []byte
	operation := func() error {
		resp, err := f.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// DownloadNaturalEarth fetches the admin-0 countries archive at the given
// scale and extracts its members into dataDir. It returns the path of the
// extracted .shp file.
func (f *Fetcher) DownloadNaturalEarth(scale, dataDir string) (string, error) {
	zipPath := filepath.Join(dataDir, fmt.Sprintf("ne_%s_admin_0_countries.zip", scale))
	if err := f.Download(NaturalEarthURL(scale), zipPath); err != nil {
		return "", err
	}
	return extractShapefileArchive(zipPath, dataDir)
}

// extractShapefileArchive unpacks every member of a shapefile zip into
// dataDir and returns the path of the .shp member.
func extractShapefileArchive(zipPath, dataDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	var shpPath string
	for _, member := range zr.File {
		name := filepath.Base(member.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		dest := filepath.Join(dataDir, name)
		if err := extractMember(member, dest); err != nil {
			return "", err
		}
		if strings.HasSuffix(name, ".shp") {
			shpPath = dest
		}
	}
	if shpPath == "" {
		return "", fmt.Errorf("archive %s contains no .shp member", zipPath)
	}
	return shpPath, nil
}

func extractMember(member *zip.File, dest string) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open archive member %s: %w", member.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", member.Name, err)
	}
	return nil
}
