package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-sostenuto/config"
	"go-sostenuto/debug"
	"go-sostenuto/engine"
	"go-sostenuto/midi"
	"go-sostenuto/theme"
	"go-sostenuto/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "go-sostenuto",
		Short: "MIDI router with a sostenuto pedal",
		Long: "go-sostenuto forwards MIDI from an input port to an output port or serial device,\n" +
			"holding the notes that were down when the sostenuto pedal went down until it comes up.",
		SilenceUsage: true,
		RunE:         runRouter,
	}
	flags := rootCmd.Flags()
	flags.String("config", "", "config file (default ~/.config/go-sostenuto/config.json)")
	flags.String("in", "", "input port name or substring")
	flags.String("out", "", "output port name or substring")
	flags.String("serial", "", "serial device for DIN MIDI output (overrides --out)")
	flags.Int("baud", midi.DefaultSerialBaud, "serial baud rate")
	flags.Bool("debug", false, "write a debug log to ~/.config/go-sostenuto/debug.log")
	flags.Bool("no-log", false, "start with the event log disabled")
	flags.String("palette", "", "GIMP .gpl palette for the UI")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List MIDI ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
			if err != nil {
				return err
			}
			defer midi.CloseDriver()
			fmt.Println("Inputs:")
			for i, name := range ports.InNames() {
				fmt.Printf("  [%d] %s\n", i, name)
			}
			fmt.Println("Outputs:")
			for i, name := range ports.OutNames() {
				fmt.Printf("  [%d] %s\n", i, name)
			}
			return nil
		},
	}
	rootCmd.AddCommand(portsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("in") {
		cfg.Ports.Input, _ = flags.GetString("in")
	}
	if flags.Changed("out") {
		cfg.Ports.Output, _ = flags.GetString("out")
	}
	if flags.Changed("serial") {
		cfg.Ports.Serial, _ = flags.GetString("serial")
	}
	if flags.Changed("baud") {
		cfg.Ports.SerialBaud, _ = flags.GetInt("baud")
	}
	if noLog, _ := flags.GetBool("no-log"); noLog {
		cfg.LoggingEnabled = false
	}
	return cfg, cfg.Validate()
}

func runRouter(cmd *cobra.Command, args []string) error {
	if on, _ := cmd.Flags().GetBool("debug"); on {
		if err := debug.Enable(); err != nil {
			return fmt.Errorf("enable debug log: %w", err)
		}
		defer debug.Disable()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	th := theme.New(nil)
	if path, _ := cmd.Flags().GetString("palette"); path != "" {
		palette, err := theme.LoadGPL(path)
		if err != nil {
			return fmt.Errorf("load palette: %w", err)
		}
		th = theme.New(palette)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	defer midi.CloseDriver()
	defer func() {
		if err := eng.Close(); err != nil {
			debug.Log("main", "teardown: %v", err)
		}
	}()

	conn := newConnector(eng, cfg)
	if err := conn.connect(); err != nil {
		return err
	}

	eng.Start()

	kb := engine.NewVirtualKeyboard(eng, cfg.ReferenceChannel, engine.DefaultVelocity, uint8(cfg.SostenutoController))
	m := tui.NewModel(eng, kb, th, conn.ports())
	m.Watcher = conn.watch()
	m.OnPort = conn.handlePort
	defer conn.stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
