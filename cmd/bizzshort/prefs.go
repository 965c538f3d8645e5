package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"bizzshort/internal/domain"

	"github.com/spf13/cobra"
)

type prefsResult struct {
	ProfileID   string               `json:"profile_id"`
	Preferences domain.AdPreferences `json:"preferences"`
	Persisted   *bool                `json:"persisted,omitempty"`
}

func newPrefsCmd(root *rootOptions) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read or overwrite a profile's ad preferences",
	}
	cmd.PersistentFlags().StringVar(&profile, "profile", "", "browser profile id")
	_ = cmd.MarkPersistentFlagRequired("profile")

	path := func() string {
		return "/v1/profiles/" + url.PathEscape(profile) + "/ad-preferences"
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the stored preferences, or the defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd.Context(), root.timeout)
			defer cancel()
			var out prefsResult
			if err := newAPIClient(root).do(ctx, http.MethodGet, path(), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	var prefs domain.AdPreferences
	set := &cobra.Command{
		Use:   "set",
		Short: "Overwrite the whole preference record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd.Context(), root.timeout)
			defer cancel()
			var out prefsResult
			if err := newAPIClient(root).do(ctx, http.MethodPut, path(), prefs, &out); err != nil {
				return err
			}
			if out.Persisted != nil && !*out.Persisted {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: preferences were not persisted by the server")
			}
			return printJSON(cmd, out)
		},
	}
	set.Flags().BoolVar(&prefs.ShowBannerAds, "banner", true, "show banner ads")
	set.Flags().BoolVar(&prefs.ShowSidebarAds, "sidebar", true, "show sidebar ads")
	set.Flags().BoolVar(&prefs.ShowPersonalizedAds, "personalized", true, "show personalized ads")
	set.Flags().StringVar(&prefs.Frequency, "frequency", domain.DefaultAdFrequency, "ad frequency")

	cmd.AddCommand(get, set)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
