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
	"strings"

	"github.com/spf13/cobra"

	"ufs/internal/uengine"
)

func init() {
	rootCmd.AddCommand(mapCmd, probeCmd, resolveCmd, lsCmd, collapseCmd)
}

var mapCmd = &cobra.Command{
	Use:   "map <area-id> <storage-id>",
	Short: "Add a mapping (area, storage)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := parseID(args[0])
		if err != nil {
			return err
		}
		storage, err := parseID(args[1])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		return e.AddMapping(area, storage)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <area-id> <storage-id>",
	Short: "Report whether (area, storage) is mapped",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := parseID(args[0])
		if err != nil {
			return err
		}
		storage, err := parseID(args[1])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		if err := e.ProbeMapping(area, storage); err != nil {
			cmd.Println("not mapped")
			return nil
		}
		cmd.Println("mapped")
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <storage-id> <view-entry>...",
	Short: "Resolve which area of a view projects a storage id ('BASE' or an area id per entry)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := parseID(args[0])
		if err != nil {
			return err
		}
		view, err := parseView(args[1:])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		area, err := e.ResolveStorageInView(view, storage)
		if err != nil {
			return err
		}
		if area == uengine.BaseArea {
			cmd.Println("BASE")
			return nil
		}
		cmd.Println(area)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <directory-name> <view-entry>...",
	Short: "List the files of a directory as visible under a view",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := parseView(args[1:])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		dir, err := e.GetDirectory(args[0])
		if err != nil {
			return err
		}
		return e.IterateDirInView(view, dir, func(storage, cursor, total int64, _ any) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d\tstorage=%d\n", cursor+1, total, storage)
			return nil
		}, nil)
	},
}

var collapseCmd = &cobra.Command{
	Use:   "collapse <view-entry>...",
	Short: "Fold every earlier area's mappings in a view into its last area",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := parseView(args)
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)
		return e.Collapse(view)
	},
}

// parseView turns CLI tokens into a View, accepting the literal
// "BASE" (case-insensitive) alongside decimal area ids.
func parseView(tokens []string) (uengine.View, error) {
	view := make(uengine.View, len(tokens))
	for i, tok := range tokens {
		if strings.EqualFold(tok, "BASE") {
			view[i] = uengine.BaseArea
			continue
		}
		id, err := parseID(tok)
		if err != nil {
			return nil, err
		}
		view[i] = id
	}
	return view, nil
}
