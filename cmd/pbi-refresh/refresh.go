package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dvcrn/pbi-refresh/internal/app"
	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/powerbi"
	"github.com/dvcrn/pbi-refresh/internal/trigger"
)

func init() {
	rootCmd.AddCommand(newRefreshCmd(powerbi.KindDataset))
	rootCmd.AddCommand(newRefreshCmd(powerbi.KindDataflow))
}

func newRefreshCmd(kind powerbi.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <workspace-id> <%s-id>", kind, kind),
		Short: fmt.Sprintf("Requests a refresh of a Power BI %s", kind),
		Long: fmt.Sprintf(`The %s command requests a refresh of a Power BI %s and prints the
API's answer as JSON.

When --client-id, --client-secret and --tenant-id are all given they are used
as-is. Otherwise the three values are read from the configured secret store.`, kind, kind),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, powerbi.Target{WorkspaceID: args[0], ResourceID: args[1], Kind: kind})
		},
	}
	cmd.Flags().String("client-id", "", "service principal application id")
	cmd.Flags().String("client-secret", "", "service principal client secret")
	cmd.Flags().String("tenant-id", "", "Azure AD tenant id")
	return cmd
}

// flagCredentials returns credentials given on the command line. ok is false
// when none were given; giving only some of them is an error.
func flagCredentials(flags *pflag.FlagSet) (creds credentials.Credentials, ok bool, err error) {
	creds.ClientID, _ = flags.GetString("client-id")
	creds.ClientSecret, _ = flags.GetString("client-secret")
	creds.TenantID, _ = flags.GetString("tenant-id")

	given := 0
	for _, v := range []string{creds.ClientID, creds.ClientSecret, creds.TenantID} {
		if v != "" {
			given++
		}
	}
	switch given {
	case 0:
		return creds, false, nil
	case 3:
		return creds, true, nil
	}
	return creds, false, errors.New("--client-id, --client-secret and --tenant-id must be given together")
}

func runRefresh(cmd *cobra.Command, target powerbi.Target) error {
	ctx := cmd.Context()

	creds, fromFlags, err := flagCredentials(cmd.Flags())
	if err != nil {
		return err
	}

	t := app.NewTrigger(cfg, log)

	var result *powerbi.RefreshResult
	if fromFlags {
		result, err = t.Refresh(ctx, creds, target)
	} else {
		store, closeStore, storeErr := app.NewSecretStore(cfg.Secrets, log)
		if storeErr != nil {
			return fmt.Errorf("failed to open secret store: %w", storeErr)
		}
		defer closeStore()
		result, err = trigger.RefreshFromStore(ctx, t, store, target)
	}

	if result != nil {
		if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil {
			return printErr
		}
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
