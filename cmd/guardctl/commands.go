package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/localauth"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guardctl",
		Short: "Operator tools for the portal access guard",
		Long: `guardctl manages the administrative account table and evaluates the
route access policy offline.`,
		SilenceUsage: true,
	}
	root.AddCommand(newHashSecretCmd(), newCheckCmd(), newValidateAccountsCmd())
	return root
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print the secret_hash value for an account table entry",
		Long: `Print a bcrypt hash for an administrative account secret.

The secret is read from the first line of stdin when no argument is given,
which keeps it out of shell history.

Examples:
  guardctl hash-secret 'Master#2024'
  echo 'Master#2024' | guardctl hash-secret`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret from stdin: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return fmt.Errorf("secret is empty")
			}

			hash, err := localauth.HashSecret(secret)
			if err != nil {
				return fmt.Errorf("hash secret: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		role         string
		path         string
		required     string
		planRequired bool
		plan         string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the access decision for a role and route",
		Long: `Evaluate the default access policy for a session role on a route and
print the resulting decision.

Examples:
  guardctl check --role general_admin --path /admin/equipe
  guardctl check --role subscriber --path /area-do-assinante/premium --required subscriber --plan-required --plan inactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionRole, err := roles.ParseRole(role)
			if err != nil {
				return err
			}
			requiredRole, err := roles.ParseRequirement(required)
			if err != nil {
				return err
			}

			policy := roles.DefaultPolicy()
			route := guard.Route{Path: path, RequiredRole: requiredRole, PlanRequired: planRequired}
			outcome := policy.Evaluate(sessionRole, roles.Requirement{
				Path:         path,
				RequiredRole: requiredRole,
				PlanRequired: planRequired,
			})
			verdict := broker.Verdict{
				Settled: true,
				Session: &sessions.Session{Role: sessionRole, Plan: sessions.PlanStatus(plan)},
			}
			d := guard.NewController(policy, guard.DefaultPaths()).Decide(route, path, verdict)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "outcome:  %s\n", outcome)
			fmt.Fprintf(out, "decision: %s\n", d.State)
			if d.Target != "" {
				fmt.Fprintf(out, "target:   %s\n", d.Target)
			}
			if reserved, ok := policy.Reserved(path); ok {
				fmt.Fprintf(out, "reserved: %s\n", reserved)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "session role (master, general_admin, content_admin, franchisee, subscriber)")
	cmd.Flags().StringVar(&path, "path", "", "route path")
	cmd.Flags().StringVar(&required, "required", string(roles.RequireAdmin), "role the route requires (admin or a session role)")
	cmd.Flags().BoolVar(&planRequired, "plan-required", false, "route requires an active plan")
	cmd.Flags().StringVar(&plan, "plan", "", "session plan status (active, inactive)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newValidateAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-accounts <file>",
		Short: "Validate an administrative account table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := localauth.LoadAccounts(args[0])
			if err != nil {
				return err
			}
			for _, a := range accounts {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", a.Identifier, a.Role)
			}
			return nil
		},
	}
}
