package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"language-toolkit/internal/logger"
)

// LoadEnvironment loads variables from .env files in the current directory
// and in the directory of the executable. Variables already set in the
// process environment are never overridden.
func LoadEnvironment() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file in current directory: %v", err)
	} else {
		logger.Info("Loaded .env file from current directory")
	}

	execPath, err := os.Executable()
	if err != nil {
		logger.Debug("Could not determine executable path: %v", err)
		return
	}
	execDir := filepath.Dir(execPath)
	if err := godotenv.Load(filepath.Join(execDir, ".env")); err != nil {
		logger.Debug("No .env file in app directory (%s): %v", execDir, err)
	} else {
		logger.Info("Loaded .env file from app directory: %s", execDir)
	}
}

// LoadEnvFile loads a specific .env file.
func LoadEnvFile(path string) error {
	return godotenv.Load(path)
}
