// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package launcher

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/udplex/udplex/pkg/private/serrors"
	"github.com/udplex/udplex/private/config"
	"github.com/udplex/udplex/private/env"
)

// newCommandTemplate returns a cobra command template for a udplex server
// application.
func newCommandTemplate(executable, shortName string, cfg config.Sampler) *cobra.Command {
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %s --config %s", executable, "config.toml"),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(
		newSample(cmd, cfg),
		newVersion(cmd),
	)
	cmd.Flags().String(cfgConfigFile, "", "Configuration file (required)")
	if err := cmd.MarkFlagRequired(cfgConfigFile); err != nil {
		panic(err)
	}
	return cmd
}

func newSample(pather *cobra.Command, cfg config.Sampler) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sample",
		Short:   "Display sample files",
		Example: fmt.Sprintf("  %s sample config", pather.Use),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "config",
			Short: "Display sample configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				if cfg == nil {
					return serrors.New("sample config not available")
				}
				cfg.Sample(os.Stdout, nil, config.CtxMap{config.ID: idSample})
				return nil
			},
		},
	)
	return cmd
}

func newVersion(pather *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show the version information",
		Example: fmt.Sprintf("  %s version", pather.Use),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(os.Stdout, env.VersionInfo())
		},
	}
}

const idSample = "udplex-1"
