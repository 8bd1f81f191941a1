// Command privilegectld is the privilege daemon: it mediates application
// installation, permission management, and filesystem labeling on a
// SMACK-enabled system over a pair of privileged Unix-domain sockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"git.ophivana.moe/security/privilegectl/message"
	"git.ophivana.moe/security/privilegectl/privilegedb"
	"git.ophivana.moe/security/privilegectl/service"
)

var (
	flagRunDir   string
	flagDBPath   string
	flagRuleDir  string
	flagTemplate string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "privilegectld",
	Short: "SMACK privilege daemon",
	Long: `privilegectld mediates application installation, permission grants, and
filesystem labeling on a SMACK-enabled system. Unprivileged clients never
touch SMACK xattrs, the privilege database, or the global rule files
directly; they connect to this daemon over local sockets and it performs the
operation on their behalf inside a bounded transaction.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagRunDir, "run-dir", "/run/security-server", "directory holding the service sockets")
	rootCmd.Flags().StringVar(&flagDBPath, "db-path", "rules.db", "privilege database file")
	rootCmd.Flags().StringVar(&flagRuleDir, "rule-dir", "/etc/smack/accesses.d", "directory holding per-package SMACK rule files")
	rootCmd.Flags().StringVar(&flagTemplate, "template", "/etc/smack/app-rules-template.smack", "app rule template expanded at install time")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
}

func run(cmd *cobra.Command, args []string) error {
	msg := message.New(flagVerbose)

	db, err := privilegedb.Open(flagDBPath)
	if err != nil {
		return fmt.Errorf("privilegectld: cannot open privilege database: %w", err)
	}
	defer db.Close()

	cfg := service.Config{
		RunDir:       flagRunDir,
		DBPath:       flagDBPath,
		RuleDir:      flagRuleDir,
		TemplatePath: flagTemplate,
	}
	srv := service.New(cfg, db, msg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		msg.Verbosef("sd_notify failed: %v", err)
	} else if ok {
		msg.Verbose("notified systemd of readiness")
	}

	err = srv.ListenAndServe(ctx)
	if err != nil && ctx.Err() != nil {
		// shutdown via signal, not a real failure
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
