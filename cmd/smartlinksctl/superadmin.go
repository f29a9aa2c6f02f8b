package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var readPassword = term.ReadPassword

func newSuperadminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superadmin",
		Short: "Manage superadmin accounts",
	}
	cmd.AddCommand(newSuperadminCreateCmd(a), newSuperadminPromoteCmd(a))
	return cmd
}

func newSuperadminCreateCmd(a *app) *cobra.Command {
	var (
		username      string
		email         string
		passwordStdin bool
		additional    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a superadmin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			svc, err := a.admin()
			if err != nil {
				return err
			}
			u, err := svc.CreateSuperadmin(cmd.Context(), username, email, password, actor(), additional)
			if err != nil {
				return fmt.Errorf("create superadmin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created superadmin %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username for the new account")
	cmd.Flags().StringVar(&email, "email", "", "Email for the new account")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&additional, "additional", false, "Allow creation when a superadmin already exists")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSuperadminPromoteCmd(a *app) *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant superadmin to an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.admin()
			if err != nil {
				return err
			}
			u, err := svc.PromoteSuperadmin(cmd.Context(), identifier, actor())
			if err != nil {
				return fmt.Errorf("promote superadmin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s (%s) to superadmin\n", u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Username or email of the account")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func promptPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("empty password on stdin")
		}
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
