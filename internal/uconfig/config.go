// Copyright 2026 UFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uconfig resolves the canonical image path and table
// capacities a UFS mount starts from, the way internal/daemon/config.go
// resolves the daemon's config directory.
package uconfig

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ufs/internal/uheader"
)

// configDirName is the directory the image and settings file live
// under, relative to the mount's working directory, per the source
// spec's "canonical path" (§6).
const configDirName = ".ufs"

// imageFileName is the backing image's file name within configDirName.
const imageFileName = "ufs_index"

// settingsFileName is the YAML overrides file, mirroring the
// teacher's settings.yaml.
const settingsFileName = "ufs.yaml"

// Settings are the YAML-decoded capacity overrides read from
// ufs.yaml. Zero fields fall back to uheader.DefaultSizeRequest.
type Settings struct {
	NumFiles    uint64 `yaml:"num_files"`
	NumAreas    uint64 `yaml:"num_areas"`
	NumNodes    uint64 `yaml:"num_nodes"`
	NumStrBytes uint64 `yaml:"num_str_bytes"`
}

// ApplyDefaults fills zero-value fields with uheader.DefaultSizeRequest.
func (s *Settings) ApplyDefaults() {
	if s.NumFiles == 0 {
		s.NumFiles = uheader.DefaultSizeRequest.NumFiles
	}
	if s.NumAreas == 0 {
		s.NumAreas = uheader.DefaultSizeRequest.NumAreas
	}
	if s.NumNodes == 0 {
		s.NumNodes = uheader.DefaultSizeRequest.NumNodes
	}
	if s.NumStrBytes == 0 {
		s.NumStrBytes = uheader.DefaultSizeRequest.NumStrBytes
	}
}

// SizeRequest converts Settings into the uheader.SizeRequest Init
// expects.
func (s Settings) SizeRequest() uheader.SizeRequest {
	return uheader.SizeRequest{
		NumFiles:    s.NumFiles,
		NumAreas:    s.NumAreas,
		NumNodes:    s.NumNodes,
		NumStrBytes: s.NumStrBytes,
	}
}

// ConfigDir returns the directory the image and settings live under.
// UFS_CONFIG_DIR overrides the default, mirroring
// LATENTFS_CONFIG_DIR's role in the teacher's daemon config.
func ConfigDir(workingDir string) string {
	if dir := os.Getenv("UFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(workingDir, configDirName)
}

// ImagePath returns the canonical backing-image path for a mount
// rooted at workingDir. UFS_IMAGE_PATH overrides it outright.
func ImagePath(workingDir string) string {
	if path := os.Getenv("UFS_IMAGE_PATH"); path != "" {
		return path
	}
	return filepath.Join(ConfigDir(workingDir), imageFileName)
}

// SettingsPath returns the YAML settings file path for workingDir.
func SettingsPath(workingDir string) string {
	return filepath.Join(ConfigDir(workingDir), settingsFileName)
}

// EnsureConfigDir creates the config directory if it does not exist.
func EnsureConfigDir(workingDir string) error {
	return os.MkdirAll(ConfigDir(workingDir), 0700)
}

// Load reads and decodes the settings file for workingDir. A missing
// file is not an error: Load returns DefaultSizeRequest-backed
// Settings instead.
func Load(workingDir string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(SettingsPath(workingDir))
	if err != nil {
		if os.IsNotExist(err) {
			s.ApplyDefaults()
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	s.ApplyDefaults()
	return s, nil
}

// Save writes settings to workingDir's settings file, creating the
// config directory first if needed.
func Save(workingDir string, s Settings) error {
	if err := EnsureConfigDir(workingDir); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(workingDir), data, 0600)
}
