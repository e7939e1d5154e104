package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/subraAntoine/apilexia/internal/database"

	"github.com/spf13/cobra"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API credentials",
}

var (
	apikeyName        string
	apikeyPrincipal   string
	apikeyPermissions string
	apikeyQuota       int
)

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API credential",
	Run:   runApikeyCreate,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API credentials for a principal",
	Run:   runApikeyList,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Revoke an API credential",
	Args:  cobra.ExactArgs(1),
	Run:   runApikeyRevoke,
}

func init() {
	apikeyCreateCmd.Flags().StringVar(&apikeyName, "name", "", "human-readable credential name")
	apikeyCreateCmd.Flags().StringVar(&apikeyPrincipal, "principal", "", "owning principal id (required)")
	apikeyCreateCmd.Flags().StringVar(&apikeyPermissions, "permissions", "", "comma-separated permission scopes")
	apikeyCreateCmd.Flags().IntVar(&apikeyQuota, "quota", 0, "per-minute rate limit quota (0 uses the default)")
	_ = apikeyCreateCmd.MarkFlagRequired("principal")

	apikeyListCmd.Flags().StringVar(&apikeyPrincipal, "principal", "", "owning principal id (required)")
	_ = apikeyListCmd.MarkFlagRequired("principal")

	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyListCmd, apikeyRevokeCmd)
	rootCmd.AddCommand(apikeyCmd)
}

func runApikeyCreate(cmd *cobra.Command, args []string) {
	cfg, services := bootstrap()
	defer database.Close()

	quota := apikeyQuota
	if quota == 0 {
		quota = cfg.DefaultQuota
	}
	var perms []string
	if apikeyPermissions != "" {
		perms = strings.Split(apikeyPermissions, ",")
	}

	cred, token, err := services.Credentials.Issue(context.Background(), apikeyName, apikeyPrincipal, perms, quota, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue credential: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("id:        %s\n", cred.ID)
	fmt.Printf("principal: %s\n", cred.Principal)
	fmt.Printf("token:     %s\n", token)
	fmt.Println("\nstore this token now; it will not be shown again.")
}

func runApikeyList(cmd *cobra.Command, args []string) {
	_, services := bootstrap()
	defer database.Close()

	creds, err := services.Credentials.List(context.Background(), apikeyPrincipal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list credentials: %v\n", err)
		os.Exit(1)
	}
	for _, c := range creds {
		fmt.Printf("%s\t%s\trevoked=%v\n", c.ID, c.Name, c.Revoked)
	}
}

func runApikeyRevoke(cmd *cobra.Command, args []string) {
	_, services := bootstrap()
	defer database.Close()

	id := args[0]
	cred, err := services.Credentials.Get(context.Background(), id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "credential not found: %v\n", err)
		os.Exit(1)
	}
	if err := services.Credentials.Revoke(context.Background(), id, cred.Principal); err != nil {
		fmt.Fprintf(os.Stderr, "failed to revoke credential: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("revoked %s\n", id)
}
