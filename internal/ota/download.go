package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// ValidateURL rejects any OTA URL that doesn't point at an allow-listed
// host over HTTP(S) — a malicious or compromised MQTT payload could
// otherwise be used to make the controller fetch from an arbitrary
// internal address (SSRF).
func ValidateURL(rawURL string, allowedHosts []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse ota url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return domain.ErrOTAInsecureScheme
	}
	for _, h := range allowedHosts {
		if u.Hostname() == h {
			return nil
		}
	}
	return domain.ErrOTAHostNotAllowed
}

// DownloadImage streams rawURL to destDir/update.tar.gz, validating the host
// first, and returns the path of the written file.
func DownloadImage(ctx context.Context, rawURL, destDir string, allowedHosts []string, softwareVersion string) (string, error) {
	if err := ValidateURL(rawURL, allowedHosts); err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	destPath := filepath.Join(destDir, "update.tar.gz")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("lifo4-edge/%s", softwareVersion))

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download update: unexpected status %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create staged image: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("write staged image: %w", err)
	}
	return destPath, nil
}
