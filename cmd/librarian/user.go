package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	"github.com/librarydesk/librarian/internal/di"
	"github.com/librarydesk/librarian/internal/di/providers"
)

var (
	userEmail string
	userRole  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local backend accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, prompting for its password",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		return withLocalBackend(cmd.Context(), func(ctx context.Context, lb *local.Backend) error {
			u, err := lb.CreateUser(ctx, backend.Credentials{Email: userEmail, Password: password}, userRole)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %q\n", u.Email, u.ID, userRole)
			return nil
		})
	},
}

var userGrantRoleCmd = &cobra.Command{
	Use:   "grant-role",
	Short: "Set the role of an existing account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalBackend(cmd.Context(), func(ctx context.Context, lb *local.Backend) error {
			if err := lb.SetRole(ctx, userEmail, userRole); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has role %q\n", userEmail, userRole)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{userCreateCmd, userGrantRoleCmd} {
		c.Flags().StringVar(&userEmail, "email", "", "account email")
		c.Flags().StringVar(&userRole, "role", "", "account role, e.g. librarian")
		_ = c.MarkFlagRequired("email")
	}
	_ = userGrantRoleCmd.MarkFlagRequired("role")

	userCmd.AddCommand(userCreateCmd, userGrantRoleCmd)
}

// withLocalBackend opens the configured local backend through the
// container, without starting the server.
func withLocalBackend(ctx context.Context, fn func(context.Context, *local.Backend) error) error {
	injector := di.NewContainer(overrides)
	defer injector.Shutdown()

	transport, err := do.Invoke[*providers.TransportHandle](injector)
	if err != nil {
		return err
	}
	if transport.Local == nil {
		return errRemoteBackend
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, transport.Local)
}

// readPassword prompts on a terminal, or reads one line when stdin is piped.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
