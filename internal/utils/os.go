package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

const WorklistDir = ".radworklist"

// Environment variables read by the binaries.
const (
	PORT            = "PORT"
	DATA_DIR        = "DATA_DIR"
	AUTHORIZED_KEYS = "AUTHORIZED_KEYS"
	AUTH_DISABLED   = "AUTH_DISABLED"
	MAX_UPLOAD_MB   = "MAX_UPLOAD_MB"
	PUBLIC_URL      = "PUBLIC_URL"
)

const (
	DefaultPort        = "8070"
	DefaultMaxUploadMB = 512
)

func GetWorklistHomeDirectory() (string, error) {
	if dir := os.Getenv(DATA_DIR); dir != "" {
		err := MakeSureDirExists(dir)
		if err != nil {
			return "", fmt.Errorf("MakeSureDirExists(dir). %w", err)
		}
		return dir, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("os.UserHomeDir(). %w", err)
	}

	worklistDir := filepath.Join(homedir, WorklistDir)
	err = MakeSureDirExists(worklistDir)
	if err != nil {
		return "", fmt.Errorf("MakeSureDirExists(worklistDir). %w", err)
	}

	return worklistDir, nil
}

func MakeSureDirExists(dirPath string) error {
	_, err := os.Stat(dirPath)

	if os.IsNotExist(err) {
		err = os.MkdirAll(dirPath, 0764)
		if err != nil {
			return fmt.Errorf("os.MkdirAll(dirPath, 0764) %w", err)
		}
		return nil
	}

	return err
}
