package utils

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

// AppName names the per-user config and cache directories.
const AppName = "pantry"

// PathResolver resolves corpus, index and config locations relative to the
// executable, the working directory and the per-user directories.
type PathResolver struct {
	executablePath string
	executableDir  string
	homeDir        string
	configDir      string
	cacheDir       string
}

// NewPathResolver creates a new path resolver that determines the executable location
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executablePath: execPath,
		executableDir:  filepath.Dir(execPath),
		homeDir:        homeDir,
		configDir:      getConfigDir(homeDir),
		cacheDir:       getCacheDir(homeDir),
	}
	log.Debugf("PathResolver initialized: exec=%s, configDir=%s, cacheDir=%s",
		execPath, pr.configDir, pr.cacheDir)
	return pr, nil
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, ".config", AppName)
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, AppName)
		}
		return filepath.Join(homeDir, ".config", AppName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", AppName)
	default:
		return filepath.Join(homeDir, "."+AppName)
	}
}

func getCacheDir(homeDir string) string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(homeDir, ".cache", AppName)
}

// GetCorpusPath resolves the corpus file. Candidates are tried in order:
// the path as given, relative to the executable, relative to the working
// directory, and under the config dir's data folder. An empty result means
// no corpus could be found, which callers treat as "no corpus configured".
func (pr *PathResolver) GetCorpusPath(userSpecifiedPath string) string {
	if userSpecifiedPath == "" {
		return ""
	}
	for _, path := range pr.candidates(userSpecifiedPath) {
		if FileExists(path) {
			log.Debugf("Found corpus: %s", path)
			return path
		}
		log.Debugf("Corpus candidate not found: %s", path)
	}
	return ""
}

// GetIndexPath returns where the persisted index lives. A relative user path
// is resolved against the working directory; an empty one falls back to the
// cache dir.
func (pr *PathResolver) GetIndexPath(userSpecifiedPath, defaultName string) string {
	if userSpecifiedPath != "" {
		return GetAbsolutePath(userSpecifiedPath)
	}
	return filepath.Join(pr.cacheDir, defaultName)
}

func (pr *PathResolver) candidates(path string) []string {
	if filepath.IsAbs(path) {
		return []string{path}
	}
	candidates := []string{path, filepath.Join(pr.executableDir, path)}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, path))
	}
	return append(candidates,
		filepath.Join(pr.executableDir, "data", filepath.Base(path)),
		filepath.Join(pr.configDir, "data", filepath.Base(path)),
	)
}

// GetConfigPath returns the full path for a config file.
// It ensures the config directory exists and handles read-only filesystem issues
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	if CheckDirStatus(pr.configDir).Writable {
		return filepath.Join(pr.configDir, filename), nil
	}

	fallbackDirs := []string{
		filepath.Join(pr.homeDir, "."+AppName),
		filepath.Join(os.TempDir(), AppName),
		pr.executableDir,
	}
	for _, dir := range fallbackDirs {
		if CheckDirStatus(dir).Writable {
			path := filepath.Join(dir, filename)
			log.Warnf("Using fallback config location: %s", path)
			return path, nil
		}
	}

	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("Using temporary config file: %s", tempPath)
	return tempPath, nil
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}

// GetExecutableDir returns the directory containing the executable
func (pr *PathResolver) GetExecutableDir() string {
	return pr.executableDir
}
