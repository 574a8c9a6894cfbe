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

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		initCmd,
		infoCmd,
		mkdirCmd,
		rmdirCmd,
		touchCmd,
		rmCmd,
		mkareaCmd,
		rmareaCmd,
	)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report per-table capacity and usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		for _, name := range []string{"files", "areas", "nodes"} {
			s := e.Stats()[name]
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d/%d\n", name, s.Used, s.Capacity)
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the image for this mount if it does not already exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		cmd.Println(e.Path())
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <name>",
	Short: "Add a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		id, err := e.AddDirectory(args[0])
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <name>",
	Short: "Remove an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		id, err := e.GetDirectory(args[0])
		if err != nil {
			return err
		}
		return e.RemoveDirectory(id)
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch <directory-name> <file-name>",
	Short: "Add a file to a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		dir, err := e.GetDirectory(args[0])
		if err != nil {
			return fmt.Errorf("directory %q: %w", args[0], err)
		}
		id, err := e.AddFile(dir, args[1])
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <directory-name> <file-name>",
	Short: "Remove a file from a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		dir, err := e.GetDirectory(args[0])
		if err != nil {
			return fmt.Errorf("directory %q: %w", args[0], err)
		}
		id, err := e.GetFile(dir, args[1])
		if err != nil {
			return err
		}
		return e.RemoveFile(id)
	},
}

var mkareaCmd = &cobra.Command{
	Use:   "mkarea <name>",
	Short: "Add an area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		id, err := e.AddArea(args[0])
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var rmareaCmd = &cobra.Command{
	Use:   "rmarea <name>",
	Short: "Remove an area and every mapping it participates in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		id, err := e.GetArea(args[0])
		if err != nil {
			return err
		}
		return e.RemoveArea(id)
	},
}

// parseID parses a decimal engine identifier from a CLI argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
