package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/multicontroller/internal/config"
	"github.com/muurk/multicontroller/internal/discovery"
	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/integration"
	"github.com/muurk/multicontroller/internal/rainmaker"
	"github.com/muurk/multicontroller/internal/server"
	"github.com/muurk/multicontroller/internal/tui"
	"github.com/muurk/multicontroller/internal/ui"
)

// Command flags
var (
	platformFilter string
	scanTimeout    time.Duration
	tokenSubject   string
	assumeYes      bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(climateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
}

// loginCmd validates credentials and records a new entry
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Add a RainMaker account",
	Long: `Log in to ESP RainMaker once to check the credentials, then record the
account in the entry registry. The password is not stored.`,
	Example: `  MULTICONTROLLER_RAINMAKER_PASSWORD=secret multicontroller login user@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().String("username", "", "RainMaker username (or pass it as an argument)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	username := settings.RainMaker.Username
	if len(args) == 1 {
		username = args[0]
	}
	if username == "" {
		return fmt.Errorf("username required")
	}
	password, err := requirePassword()
	if err != nil {
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	host := settings.RainMaker.Host
	id, err := integration.AddEntry(cmd.Context(), reg, host, username, password, settings.RainMaker.Timeout)
	if err != nil {
		if !p.JSON() {
			p.PrintError("Login failed: "+rainmaker.GetShortErrorMessage(err), err, loginTroubleshooting(integration.ErrorKey(err))...)
		}
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}

	if p.JSON() {
		return p.PrintJSON(map[string]string{"entry_id": id, "title": integration.Title})
	}
	p.PrintSuccess(integration.Title+" added",
		ui.Param{Key: "Entry", Value: id},
		ui.Param{Key: "Host", Value: host},
		ui.Param{Key: "Username", Value: username},
	)
	return nil
}

func loginTroubleshooting(key string) []string {
	switch key {
	case integration.ErrorKeyAuth:
		return []string{"Check the username and password used in the RainMaker app"}
	case integration.ErrorKeyCannotConnect:
		return []string{"Check the network connection", "Check --host points at the RainMaker API"}
	case integration.ErrorKeyAlreadyConfigured:
		return []string{"This account already has an entry; use --entry to select it"}
	default:
		return nil
	}
}

// nodesCmd prints the normalized parameters of every node
var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes and their parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Unload()

		p := newPrinter(cmd)
		snap := rt.Coordinator.Snapshot()
		if p.JSON() {
			nodes := make([]server.NodeView, 0, snap.Len())
			for _, id := range snap.NodeIDs() {
				nodes = append(nodes, server.NewNodeView(id, snap.Node(id)))
			}
			return p.PrintJSON(nodes)
		}
		p.PrintHeader(integration.Title, "nodes", ui.Param{Key: "Nodes", Value: strconv.Itoa(snap.Len())})
		p.PrintTable(ui.NodeTable(snap, p.Width()))
		printSkipped(p, rt.Coordinator.Skipped())
		return nil
	},
}

func printSkipped(p *ui.Printer, skipped []error) {
	if len(skipped) == 0 || p.JSON() {
		return
	}
	details := make([]ui.Param, 0, len(skipped))
	for i, err := range skipped {
		details = append(details, ui.Param{Key: strconv.Itoa(i + 1), Value: rainmaker.GetShortErrorMessage(err)})
	}
	p.PrintWarning(fmt.Sprintf("%d node(s) skipped", len(skipped)), details...)
}

// entitiesCmd prints every derived entity
var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List derived entities",
	Example: `  multicontroller entities
  multicontroller entities --platform switch --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Unload()

		states := filterStates(rt.Entities.Describe(), platformFilter)
		p := newPrinter(cmd)
		if p.JSON() {
			return p.PrintJSON(states)
		}
		p.PrintHeader(integration.Title, "entities", ui.Param{Key: "Entities", Value: strconv.Itoa(len(states))})
		p.PrintTable(ui.EntityTable(states, p.Width()))
		return nil
	},
}

func init() {
	entitiesCmd.Flags().StringVar(&platformFilter, "platform", "", "Only show one platform (climate, sensor, binary_sensor, switch, number)")
}

func filterStates(states []entity.State, platform string) []entity.State {
	if platform == "" {
		return states
	}
	out := make([]entity.State, 0, len(states))
	for _, st := range states {
		if string(st.Platform) == platform {
			out = append(out, st)
		}
	}
	return out
}

// setCmd changes a switch or number entity
var setCmd = &cobra.Command{
	Use:   "set <unique_id> <on|off|value>",
	Short: "Turn a switch on or off, or set a number",
	Example: `  multicontroller set ENTRY_NODE_radiant_enabled off
  multicontroller set ENTRY_NODE_temp_setpoint 21.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Unload()

		e, err := rt.Entities.Get(args[0])
		if err != nil {
			return err
		}
		if err := applySet(cmd.Context(), e, args[1]); err != nil {
			return err
		}
		return printState(newPrinter(cmd), e)
	},
}

// applySet runs the write for one set command
func applySet(ctx context.Context, e entity.Entity, arg string) error {
	switch v := e.(type) {
	case *entity.Switch:
		on, err := parseOnOff(arg)
		if err != nil {
			return err
		}
		if on {
			v.TurnOn(ctx)
		} else {
			v.TurnOff(ctx)
		}
		return nil
	case *entity.Number:
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", arg)
		}
		return v.SetNativeValue(ctx, value)
	default:
		return fmt.Errorf("%s is a %s entity; only switch and number entities can be set", e.UniqueID(), e.Platform())
	}
}

func parseOnOff(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch state %q (use on or off)", arg)
	}
}

func printState(p *ui.Printer, e entity.Entity) error {
	st := e.State()
	if p.JSON() {
		return p.PrintJSON(st)
	}
	p.PrintSuccess(st.Name,
		ui.Param{Key: "Entity", Value: st.UniqueID},
		ui.Param{Key: "State", Value: ui.Summary(st)},
	)
	return nil
}

// climateCmd groups the climate commands
var climateCmd = &cobra.Command{
	Use:   "climate",
	Short: "Control a climate entity",
}

func init() {
	climateCmd.AddCommand(&cobra.Command{
		Use:   "hvac <unique_id> <heat|cool|off>",
		Short: "Set the HVAC mode",
		Args:  cobra.ExactArgs(2),
		RunE: climateRunE(func(ctx context.Context, c *entity.Climate, arg string) error {
			return c.SetHVACMode(ctx, entity.HVACMode(strings.ToLower(arg)))
		}),
	})
	climateCmd.AddCommand(&cobra.Command{
		Use:   "temp <unique_id> <celsius>",
		Short: "Set the target temperature",
		Args:  cobra.ExactArgs(2),
		RunE: climateRunE(func(ctx context.Context, c *entity.Climate, arg string) error {
			t, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid temperature %q", arg)
			}
			return c.SetTemperature(ctx, t)
		}),
	})
	climateCmd.AddCommand(&cobra.Command{
		Use:   "fan <unique_id> <mode>",
		Short: "Set the fan mode by label",
		Args:  cobra.ExactArgs(2),
		RunE: climateRunE(func(ctx context.Context, c *entity.Climate, arg string) error {
			return c.SetFanMode(ctx, arg)
		}),
	})
}

func climateRunE(apply func(context.Context, *entity.Climate, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Unload()

		c, err := rt.Entities.Climate(args[0])
		if err != nil {
			return err
		}
		if err := apply(cmd.Context(), c, args[1]); err != nil {
			return err
		}
		return printState(newPrinter(cmd), c)
	}
}

// watchCmd runs the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live dashboard of every entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Unload()

		rt.Start()
		return tui.Run(ctx, integration.Title, rt.Entities, rt.Coordinator)
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Poll interval (default from settings)")
}

// scanCmd browses the LAN for running bridges
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find running bridges on the local network",
	Long: `Browse mDNS for bridges started with 'multicontroller serve'. With --entry,
wait until the bridge serving that entry is seen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrinter(cmd)
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout

		if !p.JSON() {
			p.Println(fmt.Sprintf("Scanning for bridges (timeout: %s)...", scanTimeout))
		}
		bridges, err := scan(cmd.Context(), scanner, entryFlag)
		if err != nil {
			return err
		}

		if p.JSON() {
			return p.PrintJSON(bridges)
		}
		if len(bridges) == 0 {
			p.PrintWarning("No bridges found",
				ui.Param{Key: "Hint", Value: "Run 'multicontroller serve' on this network"},
				ui.Param{Key: "Hint", Value: "Increase --timeout on slow networks"},
			)
			return nil
		}
		p.PrintTable(ui.BridgeTable(bridges, p.Width()))
		return nil
	},
}

// scan browses for every bridge, or waits for the one serving entryID
func scan(ctx context.Context, scanner *discovery.Scanner, entryID string) ([]*discovery.Bridge, error) {
	if entryID == "" {
		return scanner.Scan(ctx)
	}
	bridge, err := scanner.WaitForEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return []*discovery.Bridge{bridge}, nil
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
}

// tokenCmd issues an API bearer token
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the hub API",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer := server.NewTokenIssuer(settings.Server.TokenSecret, settings.Server.TokenTTL)
		if !issuer.Enabled() {
			return fmt.Errorf("%w: set server.token_secret or --token-secret", server.ErrAuthDisabled)
		}
		token, err := issuer.Issue(tokenSubject)
		if err != nil {
			return err
		}

		p := newPrinter(cmd)
		if p.JSON() {
			return p.PrintJSON(map[string]string{"token": token, "subject": tokenSubject})
		}
		fmt.Fprintln(p.Writer(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "hub", "Token subject")
	tokenCmd.Flags().String("token-secret", "", "Signing secret (default from settings)")
	tokenCmd.Flags().Duration("token-ttl", 0, "Token lifetime (default from settings)")
}

// configCmd groups entry registry maintenance
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configured entries",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Clear entities created by another integration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		id, entry, err := selectEntry(reg, entryFlag)
		if err != nil {
			return err
		}

		p := newPrinter(cmd)
		from := entry.IntegrationVersion
		if from == integration.Version {
			if p.JSON() {
				return p.PrintJSON(map[string]any{"entry_id": id, "migrated": false})
			}
			p.PrintSuccess("Entry is up to date", ui.Param{Key: "Version", Value: from})
			return nil
		}

		if !assumeYes && !p.JSON() {
			warnings := []string{
				fmt.Sprintf("Entry %s was created by version %s", id, from),
				fmt.Sprintf("%d registered entities will be removed and recreated on next setup", entry.EntityCount()),
			}
			if !p.Confirm(os.Stdin, "Migrate entry to "+integration.Version+"?", warnings) {
				p.PrintWarning("Migration cancelled")
				return nil
			}
		}

		migrated := config.MigrateEntry(entry, integration.Version)
		if err := reg.Save(); err != nil {
			return err
		}
		if p.JSON() {
			return p.PrintJSON(map[string]any{"entry_id": id, "migrated": migrated})
		}
		p.PrintSuccess("Entry migrated",
			ui.Param{Key: "From", Value: from},
			ui.Param{Key: "To", Value: integration.Version},
		)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Forget a configured account",
	Long: `Remove an entry and the unique ids of its entities from the registry.
The RainMaker account itself is not touched.`,
	Example: `  multicontroller config remove --entry 2f0c... --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		id, entry, err := selectEntry(reg, entryFlag)
		if err != nil {
			return err
		}

		p := newPrinter(cmd)
		if !assumeYes && !p.JSON() {
			warnings := []string{
				fmt.Sprintf("Account %s on %s will be forgotten", entry.Username, entry.Host),
				fmt.Sprintf("%d registered entities will be dropped", entry.EntityCount()),
			}
			if !p.Confirm(os.Stdin, "Remove entry "+id+"?", warnings) {
				p.PrintWarning("Removal cancelled")
				return nil
			}
		}

		removed := reg.RemoveEntry(id)
		if err := reg.Save(); err != nil {
			return err
		}
		if p.JSON() {
			return p.PrintJSON(map[string]any{"entry_id": id, "removed": removed})
		}
		p.PrintSuccess("Entry removed",
			ui.Param{Key: "Entry", Value: id},
			ui.Param{Key: "Username", Value: entry.Username},
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	removeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	configCmd.AddCommand(migrateCmd)
	configCmd.AddCommand(removeCmd)
}
