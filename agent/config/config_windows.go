package config

import (
	"os"
	"path/filepath"
)

func configPaths() []string {
	return []string{filepath.Join(os.Getenv("ProgramFiles"), "VPSAgent"), "."}
}
