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

// Package commands implements ufsctl, an admin CLI that drives the
// UFS engine directly for operational and debugging use — the way
// the teacher's internal/cli/commands drives latentfs's daemon. It is
// not the FUSE mount wrapper; that remains out of scope.
package commands

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ufs/internal/uconfig"
	"ufs/internal/uengine"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// workingDir is the -C flag: the directory a mount's .ufs/ lives
// under. Defaults to the process's current directory.
var workingDir string

// SetVersion records build metadata for --version.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
	rootCmd.Version = fmt.Sprintf("%s (%s, commit %s)", version, date, commit)
}

var rootCmd = &cobra.Command{
	Use:   "ufsctl",
	Short: "Inspect and drive a UFS metadata image",
	Long: `ufsctl is an operational CLI over the UFS semantic engine: it adds and
removes directories, files, and areas, manages area->storage mappings,
and resolves or iterates views — all against the same on-disk image
the FUSE mount reads.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&workingDir, "dir", "C", ".", "mount working directory (image lives under <dir>/.ufs)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openEngine opens (creating if absent) the engine for the current
// workingDir, applying any ufs.yaml capacity overrides.
func openEngine() (*uengine.Engine, error) {
	path := uconfig.ImagePath(workingDir)
	if _, err := os.Stat(path); err == nil {
		return uengine.Open(path)
	}
	if err := uconfig.EnsureConfigDir(workingDir); err != nil {
		return nil, err
	}
	settings, err := uconfig.Load(workingDir)
	if err != nil {
		return nil, err
	}
	log.Debugf("[ufsctl] creating image at %s with %+v", path, settings)
	return uengine.Create(path, settings.SizeRequest())
}

func closeEngine(e *uengine.Engine) {
	if err := e.Destroy(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close image cleanly: %v\n", err)
	}
}
