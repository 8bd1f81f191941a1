// Command privilegectl is an administrative client for the privilege
// daemon: it speaks the same length-framed protocol as a regular client
// library, for debugging and scripting against a running privilegectld.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"

	"git.ophivana.moe/security/privilegectl/service"
	"git.ophivana.moe/security/privilegectl/wire"
)

var flagModifySocket string
var flagGetSocket string

var rootCmd = &cobra.Command{
	Use:   "privilegectl",
	Short: "Administrative client for the privilege daemon",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModifySocket, "modify-socket",
		"/run/security-server/security-server-api-libprivilege-control-modify.socket", "modify-interface socket path")
	rootCmd.PersistentFlags().StringVar(&flagGetSocket, "get-socket",
		"/run/security-server/security-server-api-libprivilege-control-get.socket", "get-interface socket path")

	rootCmd.AddCommand(installCmd, uninstallCmd, beginCmd, endCmd, rollbackCmd,
		hasPermissionCmd, getPermissionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// roundTrip dials socket, writes one request frame built by build, reads one
// reply frame, and hands it to read for status-specific decoding.
func roundTrip(socket string, build func(w *wire.Writer), read func(r *wire.Reader) error) error {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socket, err)
	}
	defer conn.Close()

	w := wire.NewWriter()
	build(w)
	if _, err := conn.Write(wire.AppendFrame(nil, w.Bytes())); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	var hdr [wire.FrameHeaderLen]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return fmt.Errorf("read reply header: %w", err)
	}
	payload := make([]byte, binary.LittleEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(conn, payload); err != nil {
		return fmt.Errorf("read reply payload: %w", err)
	}

	return read(wire.NewReader(payload))
}

func readStatus(r *wire.Reader) (service.Status, error) {
	v, err := r.Int32()
	return service.Status(v), err
}

var installCmd = &cobra.Command{
	Use:   "install <pkg-id>",
	Short: "Register a package and apply its SMACK rule template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(flagModifySocket, func(w *wire.Writer) {
			w.Int32(int32(wire.ModifyActionAppInstall))
			w.Pid(int32(os.Getpid()))
			w.String(args[0])
		}, printStatus)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <pkg-id>",
	Short: "Remove a package's rules and database rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(flagModifySocket, func(w *wire.Writer) {
			w.Int32(int32(wire.ModifyActionAppUninstall))
			w.Pid(int32(os.Getpid()))
			w.String(args[0])
		}, printStatus)
	},
}

var beginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Open a transaction owned by this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(flagModifySocket, func(w *wire.Writer) {
			w.Int32(int32(wire.ModifyActionBegin))
			w.Pid(int32(os.Getpid()))
		}, printStatus)
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "Close the transaction owned by this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(flagModifySocket, func(w *wire.Writer) {
			w.Int32(int32(wire.ModifyActionEnd))
			w.Pid(int32(os.Getpid()))
		}, printStatus)
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the transaction owned by this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundTrip(flagModifySocket, func(w *wire.Writer) {
			w.Int32(int32(wire.ModifyActionRollback))
			w.Pid(int32(os.Getpid()))
		}, printStatus)
	},
}

var hasPermissionCmd = &cobra.Command{
	Use:   "has-permission <pkg-id> <app-type> <permission>",
	Short: "Check whether a package holds a permission",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		appType, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		return roundTrip(flagGetSocket, func(w *wire.Writer) {
			w.Int32(int32(wire.GetActionAppHasPermission))
			w.Pid(int32(os.Getpid()))
			w.String(args[0])
			w.Int32(appType)
			w.String(args[2])
		}, func(r *wire.Reader) error {
			status, err := readStatus(r)
			if err != nil {
				return err
			}
			if status != service.StatusSuccess {
				fmt.Println(status)
				return nil
			}
			enabled, err := r.Bool()
			if err != nil {
				return err
			}
			fmt.Println(enabled)
			return nil
		})
	},
}

var getPermissionsCmd = &cobra.Command{
	Use:   "get-permissions <pkg-id> <app-type>",
	Short: "List permissions granted to a package",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appType, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		return roundTrip(flagGetSocket, func(w *wire.Writer) {
			w.Int32(int32(wire.GetActionAppGetPermissions))
			w.Pid(int32(os.Getpid()))
			w.String(args[0])
			w.Int32(appType)
		}, func(r *wire.Reader) error {
			status, err := readStatus(r)
			if err != nil {
				return err
			}
			if status != service.StatusSuccess {
				fmt.Println(status)
				return nil
			}
			perms, err := r.StringVector()
			if err != nil {
				return err
			}
			for _, p := range perms {
				fmt.Println(p)
			}
			return nil
		})
	},
}

func printStatus(r *wire.Reader) error {
	status, err := readStatus(r)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

func parseInt32(s string) (int32, error) {
	var v int32
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}
