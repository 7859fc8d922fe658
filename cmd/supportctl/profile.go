package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is the non-secret session state saved by `supportctl login`.
type Profile struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".supportctl.yaml"
	}
	return filepath.Join(dir, "supportctl", "profile.yaml")
}

// loadProfile returns an empty profile when the file does not exist.
func loadProfile(path string) (Profile, error) {
	var p Profile
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

func saveProfile(path string, p Profile) error {
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}
