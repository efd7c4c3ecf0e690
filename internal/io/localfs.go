package io

import (
	"fmt"
	"os"
	"path/filepath"
	"radworklist/internal/dicomblob"
	"radworklist/internal/utils"
	"sort"
)

type LocalFSHandler struct{}

func (l LocalFSHandler) ReadDicomDir(dir string) ([]string, [][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf(`os.ReadDir(dir). %w`, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([][]byte, 0, len(names))
	for _, name := range names {
		fileBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf(`os.ReadFile(%s). %w`, name, err)
		}
		files = append(files, fileBytes)
	}

	return names, files, nil
}

func (l LocalFSHandler) WriteBlob(path string, blob []byte) error {
	err := os.WriteFile(path, blob, 0644)
	if err != nil {
		return fmt.Errorf(`os.WriteFile(path, blob, 0644). %w`, err)
	}
	return nil
}

func (l LocalFSHandler) GetBlob(path string) ([]byte, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return fileBytes, fmt.Errorf(`os.ReadFile(path). %w`, err)
	}
	return fileBytes, nil
}

func (l LocalFSHandler) WriteStack(dir string, images []dicomblob.StackImage) ([]string, error) {
	err := utils.MakeSureDirExists(dir)
	if err != nil {
		return nil, fmt.Errorf(`utils.MakeSureDirExists(dir). %w`, err)
	}

	paths := make([]string, 0, len(images))
	for i, image := range images {
		path := filepath.Join(dir, fmt.Sprintf("slice_%04d.dcm", i))
		err := os.WriteFile(path, image.Payload, 0644)
		if err != nil {
			return paths, fmt.Errorf(`os.WriteFile(path, image.Payload, 0644). %w`, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
