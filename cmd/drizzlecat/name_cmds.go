// Copyright 2026 Dolthub, Inc.
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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <name>...",
	Short: "Print the on-disk form of schema or table names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			if err := identifier.ValidateName("table", name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identifier.EncodeName(name))
		}
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file name>...",
	Short: "Print the names stored under on-disk file names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, encoded := range args {
			if err := identifier.CheckEncoded(encoded); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identifier.DecodeName(encoded))
		}
		return nil
	},
}
