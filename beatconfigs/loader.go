package beatconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/reusee/taibeat/configs"
	"github.com/reusee/taibeat/logs"
)

//go:embed schema.cue
var schema string

var configFileNames = []string{
	"taibeat.cue",
	".taibeat.cue",
}

// ConfigsLoader looks in the working directory, then the user config dir, then /etc.
func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	var dirs []string
	if dir, err := os.Getwd(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, "/etc")

	var paths []string
	for _, dir := range dirs {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	if len(paths) > 0 {
		logger.Info("config files", "paths", paths)
	}

	return configs.NewLoader(paths, schema)
}
