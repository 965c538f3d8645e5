package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"

	"bizzshort/internal/domain"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fixtureFile maps a collection name to the documents to create in it.
type fixtureFile map[string][]map[string]any

func loadFixtures(path string) (fixtureFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixtures fixtureFile
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var unknown []string
	for name := range fixtures {
		if _, ok := domain.ParseCollection(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown collections in %s: %v", path, unknown)
	}
	return fixtures, nil
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	var (
		file     string
		adminKey string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create every document of a YAML fixture file",
		Long: `Reads a YAML file keyed by collection name and POSTs each document.

Example fixture:
  articles:
    - title: Markets close higher
      content: ...
      category: markets
  advertisements:
    - title: Spring sale
      image_url: https://cdn.example.com/spring.png
      link: https://example.com
      placement: banner`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(file)
			if err != nil {
				return err
			}
			client := newAPIClient(root)
			client.headers["X-Admin-Key"] = adminKey

			created := 0
			for _, collection := range domain.Collections() {
				for i, doc := range fixtures[string(collection)] {
					ctx, cancel := withTimeout(cmd.Context(), root.timeout)
					var out struct {
						ID string `json:"id"`
					}
					err := client.do(ctx, http.MethodPost, "/v1/"+string(collection), doc, &out)
					cancel()
					if err != nil {
						return fmt.Errorf("%s[%d]: %w", collection, i, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", collection, out.ID)
					created++
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "seeded %d documents\n", created)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML fixture file")
	cmd.Flags().StringVar(&adminKey, "admin-key", os.Getenv("ADMIN_API_KEY"), "admin API key")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
