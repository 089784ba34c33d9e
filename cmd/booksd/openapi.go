package main

import (
	"encoding/json"
	"fmt"

	"github.com/bookstore/services/books/internal/httpapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newOpenAPICmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI description of the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := httpapi.New(nil, zap.NewNop(), httpapi.Options{Version: Version}).OpenAPI()

			js, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				_, err = out.Write(append(js, '\n'))
				return err
			case "yaml":
				// Round-trip through a generic value so the YAML keeps the JSON field names.
				var v any
				if err := json.Unmarshal(js, &v); err != nil {
					return err
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(v); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q, expected json or yaml", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
