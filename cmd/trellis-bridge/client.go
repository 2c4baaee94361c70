package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/FishWoWater/trellis-blender/internal/client"
	"github.com/FishWoWater/trellis-blender/internal/config"
	"github.com/FishWoWater/trellis-blender/internal/discovery"
	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/FishWoWater/trellis-blender/internal/ui"
)

// Controller flags shared by send and console
var (
	bridgeAddr    string
	bridgeFraming string
	bridgeTimeout time.Duration
	bridgeFind    string
	sendRaw       bool
)

var sendCmd = &cobra.Command{
	Use:   "send <type> [params-json]",
	Short: "Send one command to a bridge",
	Long: `Send a single command and print the response.

Params are a JSON object. With no arguments, commands are read from stdin
one per line in the same "<type> [params-json]" form; each is sent in turn.

The exit status is non-zero if any response has status "error".`,
	Example: `  trellis-bridge send get_scene_info
  trellis-bridge send create_object '{"type": "SPHERE", "location": [0, 0, 2]}'
  echo 'delete_object {"name": "Cube"}' | trellis-bridge send --raw`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSend,
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive command console",
	Long: `Open an interactive console connected to a bridge.

Type a command per line in the form "<type> [params-json]". Responses are
shown in the transcript above the prompt.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

var (
	discoverTimeout time.Duration
	discoverJSON    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find bridges on the local network",
	Long: `Browse mDNS for bridges started with --advertise and list them.`,
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, consoleCmd} {
		c.Flags().StringVarP(&bridgeAddr, "addr", "a", "", "Bridge address host:port (default from config)")
		c.Flags().StringVar(&bridgeFraming, "framing", "", "Message framing: whole, stream or newline (default from config)")
		c.Flags().DurationVar(&bridgeTimeout, "timeout", client.DefaultTimeout, "Per-request timeout")
		c.Flags().StringVar(&bridgeFind, "find", "", "Locate the bridge over mDNS by instance name instead of --addr")
	}
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Print the raw JSON response instead of a styled box")

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to wait for answers")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(sendCmd, consoleCmd, discoverCmd)
}

// dialBridge resolves the target from flags, mDNS or the config file.
func dialBridge(ctx context.Context) (*client.Client, error) {
	if err := logging.Initialize(logLevel); err != nil {
		return nil, err
	}

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	framingName := cfg.Server.Framing
	if bridgeFraming != "" {
		framingName = bridgeFraming
	}
	framing, err := protocol.ParseMode(framingName)
	if err != nil {
		return nil, err
	}

	addr := bridgeAddr
	switch {
	case addr != "":
	case bridgeFind != "":
		b, err := discovery.NewScanner().Find(ctx, bridgeFind)
		if err != nil {
			return nil, err
		}
		addr = b.Addr()
		if fr := b.GetMetadata("framing"); fr != "" && bridgeFraming == "" {
			if framing, err = protocol.ParseMode(fr); err != nil {
				return nil, fmt.Errorf("bridge %s advertises %w", b.Instance, err)
			}
		}
	default:
		addr = cfg.Server.Addr()
	}

	return client.Dial(ctx, addr, client.WithFraming(framing), client.WithTimeout(bridgeTimeout))
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var commands []protocol.Command
	if len(args) > 0 {
		c, err := protocol.ParseCommandLine(strings.Join(args, " "))
		if err != nil {
			return err
		}
		commands = append(commands, c)
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		for n, line := range strings.Split(string(data), "\n") {
			c, err := protocol.ParseCommandLine(line)
			if errors.Is(err, protocol.ErrEmptyLine) {
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", n+1, err)
			}
			commands = append(commands, c)
		}
	}
	if len(commands) == 0 {
		return fmt.Errorf("no command given")
	}

	c, err := dialBridge(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	printer := ui.NewPrinter(out)
	failed := 0
	for _, command := range commands {
		resp, err := c.Send(ctx, command)
		if err != nil {
			return err
		}
		if !resp.OK() {
			failed++
		}
		if sendRaw {
			data, _ := json.Marshal(resp)
			fmt.Fprintln(out, string(data))
			continue
		}
		printer.PrintResponse(command.Type, *resp)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(commands))
	}
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("console needs an interactive terminal; use 'send' for scripted input")
	}

	c, err := dialBridge(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	return ui.RunConsole(c, c.RemoteAddr(), bridgeTimeout)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout
	bridges, err := scanner.Scan(cmd.Context())
	if err != nil {
		return err
	}

	if discoverJSON {
		type entry struct {
			Instance string            `json:"instance"`
			Hostname string            `json:"hostname"`
			Addr     string            `json:"addr"`
			Metadata map[string]string `json:"metadata"`
		}
		list := make([]entry, 0, len(bridges))
		for _, b := range bridges {
			list = append(list, entry{Instance: b.Instance, Hostname: b.Hostname, Addr: b.Addr(), Metadata: b.Metadata})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintBridges(bridges)
	return nil
}
