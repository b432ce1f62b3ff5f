package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/rkirkendall/lumina/internal/version"
)

const repoOwner = "rkirkendall"
const repoName = "lumina"

// releasesURL is overridden in tests.
var releasesURL = fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", repoOwner, repoName)

func latestVersionTag() (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, releasesURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "lumina-updater")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release check: %s", resp.Status)
	}
	var o struct {
		Tag string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		return "", err
	}
	return strings.TrimSpace(o.Tag), nil
}

// maybeSelfUpdate checks GitHub for a newer release and prints an inline hint.
// The binary is never replaced; only the install one-liner is suggested.
func maybeSelfUpdate(out interface{ Println(a ...any) }) {
	// Skip in dev builds
	if version.Version == "dev" {
		return
	}
	tag, err := latestVersionTag()
	if err != nil || tag == "" {
		return
	}
	if strings.TrimPrefix(tag, "v") == strings.TrimPrefix(version.Version, "v") {
		return
	}
	if hint := installHint(runtime.GOOS); hint != "" {
		out.Println("A newer lumina is available (", tag, "), update with:")
		out.Println("  ", hint)
	}
}

func installHint(goos string) string {
	switch goos {
	case "darwin", "linux":
		return fmt.Sprintf("curl -fsSL https://raw.githubusercontent.com/%s/%s/main/scripts/install.sh | bash", repoOwner, repoName)
	case "windows":
		return fmt.Sprintf("powershell -ExecutionPolicy Bypass -c \"iwr https://raw.githubusercontent.com/%s/%s/main/scripts/install.ps1 -UseB | iex\"", repoOwner, repoName)
	}
	return ""
}
