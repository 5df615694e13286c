// Package appdir resolves the per-user directories keyvet reads and writes:
// its own application-data directory (master key, config, database) and the
// chromium-family user-data directories scanned by the browser collector.
package appdir

import (
	"os"
	"path/filepath"
	"runtime"
)

// dirName is the folder created under the platform app-data root.
const dirName = "keyvet"

// AppData returns the keyvet application-data directory, creating it if
// necessary. On Windows this is %LOCALAPPDATA%\keyvet; elsewhere it falls
// back to os.UserConfigDir.
func AppData() (string, error) {
	root := os.Getenv("LOCALAPPDATA")
	if root == "" {
		var err error
		root, err = os.UserConfigDir()
		if err != nil {
			return "", err
		}
	}
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// BrowserUserData describes one chromium-family User Data directory.
type BrowserUserData struct {
	// Browser is the human-readable browser name (Chrome, Edge, Brave).
	Browser string
	// Dir is the absolute User Data directory path.
	Dir string
}

// BrowserUserDataDirs returns the chromium-family User Data directories that
// exist on this host. Only Windows layouts are probed; on other platforms the
// result is empty and the browser collector is a no-op.
func BrowserUserDataDirs() []BrowserUserData {
	if runtime.GOOS != "windows" {
		// Allow tests to inject a fake layout via the env var.
		if fake := os.Getenv("KEYVET_BROWSER_ROOT"); fake != "" {
			return probeUserDataDirs(fake)
		}
		return nil
	}
	local := os.Getenv("LOCALAPPDATA")
	if local == "" {
		return nil
	}
	return probeUserDataDirs(local)
}

func probeUserDataDirs(local string) []BrowserUserData {
	candidates := []BrowserUserData{
		{Browser: "Chrome", Dir: filepath.Join(local, "Google", "Chrome", "User Data")},
		{Browser: "Edge", Dir: filepath.Join(local, "Microsoft", "Edge", "User Data")},
		{Browser: "Brave", Dir: filepath.Join(local, "BraveSoftware", "Brave-Browser", "User Data")},
	}
	var out []BrowserUserData
	for _, c := range candidates {
		if info, err := os.Stat(c.Dir); err == nil && info.IsDir() {
			out = append(out, c)
		}
	}
	return out
}

// Home returns the current user's home directory, or "" when unknown.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
