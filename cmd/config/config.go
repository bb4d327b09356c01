// Package config implements the config command printing the effective settings.
package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after merging the config file, environment variables and flags. Secrets are redacted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if savePath != "" {
				if err := conf.SaveYAMLConfig(conf.ExpandPath(savePath), settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration written to %s\n", savePath)
				return nil
			}
			return Print(cmd.OutOrStdout(), settings)
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the effective configuration, unredacted, to this file")

	return cmd
}

// Print writes settings as YAML with sensitive values redacted.
func Print(w io.Writer, settings *conf.Settings) error {
	var doc yaml.Node
	if err := doc.Encode(settings); err != nil {
		return fmt.Errorf("error encoding settings: %w", err)
	}
	redactNode(&doc, "")

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("error writing settings: %w", err)
	}
	return enc.Close()
}

// redactNode replaces scalar values under sensitive keys. path is the dotted key of n.
func redactNode(n *yaml.Node, path string) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			redactNode(c, path)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			childPath := key.Value
			if path != "" {
				childPath = path + "." + key.Value
			}
			if value.Kind == yaml.ScalarNode {
				value.Value = logger.RedactValue(childPath, value.Value)
				continue
			}
			redactNode(value, childPath)
		}
	}
}
