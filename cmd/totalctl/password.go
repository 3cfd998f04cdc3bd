package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
	"github.com/eliteGoblin/focusd/totalctl/internal/infra"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the unlock password",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the password used to unlock password rules",
	Long: `Sets the unlock password. It is read from --password or from the first
line of stdin. Only a bcrypt hash is stored, in the encrypted store.`,
	RunE: runPasswordSet,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock RULE_ID",
	Short: "Unlock a password rule for the rest of today",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlock,
}

var passwordFlag string

func init() {
	passwordSetCmd.Flags().StringVar(&passwordFlag, "password", "", "New password (default: read from stdin)")
	unlockCmd.Flags().StringVar(&passwordFlag, "password", "", "Password (default: read from stdin)")

	passwordCmd.AddCommand(passwordSetCmd)
	rootCmd.AddCommand(passwordCmd, unlockCmd)
}

// readPassword returns the flag value or the first line of r.
func readPassword(flagValue string, r io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	return pw, nil
}

func runPasswordSet(cmd *cobra.Command, args []string) error {
	if passwordFlag == "" {
		fmt.Fprint(os.Stderr, "New password: ")
	}
	pw, err := readPassword(passwordFlag, os.Stdin)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := infra.SetPassword(store, pw); err != nil {
		return err
	}
	fmt.Println("Password set")
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := newRuleEngine(store, logger)
	if err != nil {
		return err
	}
	r, err := engine.Get(args[0])
	if err != nil {
		return err
	}
	if r.Condition.Kind != domain.ConditionPassword {
		return fmt.Errorf("rule %s is not a password rule", r.ID)
	}

	if passwordFlag == "" {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	pw, err := readPassword(passwordFlag, os.Stdin)
	if err != nil {
		return err
	}
	if err := infra.VerifyPassword(store, pw); err != nil {
		if errors.Is(err, domain.ErrNoPassword) {
			return fmt.Errorf("%w: run 'totalctl password set' first", err)
		}
		return err
	}

	day := newProgressStore(logger).Snapshot().Day()
	if err := engine.Unlock(r.ID, day); err != nil {
		return err
	}
	fmt.Printf("Unlocked %s for %s\n", r.ID, day)
	return nil
}
