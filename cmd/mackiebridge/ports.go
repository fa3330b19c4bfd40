package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mackiebridge/internal/mcu"
)

var (
	portsTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	portsHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	portsIndexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555")).Width(4)
	portsMatchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
	portsDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
)

func printPortsUsage() {
	fmt.Printf("mackiebridge ports v%s\n", version)
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  mackiebridge ports [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Lists the MIDI input and output ports the driver can see. Ports that")
	fmt.Println("  match the configured main unit or extender names are highlighted.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file used for highlighting (optional)")
	fmt.Println()
	fmt.Println("  -scan-timeout-ms int")
	fmt.Println("        Give up enumerating ports after this many ms (default 3000)")
	fmt.Println()
}

// runPortsSubcommand handles the ports subcommand.
func runPortsSubcommand(args []string) int {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv(envConfigPath), "Path to YAML config file")
	scanTimeoutMS := fs.Int("scan-timeout-ms", 0, "Port scan timeout in ms")
	showHelp := fs.Bool("help", false, "Print help message")
	fs.Usage = printPortsUsage
	_ = fs.Parse(args)

	if *showHelp {
		printPortsUsage()
		return 0
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		cfg = loaded
	}
	if *scanTimeoutMS > 0 {
		cfg.Surface.ScanTimeoutMS = *scanTimeoutMS
	}

	ports, err := mcu.Scan(time.Duration(cfg.Surface.ScanTimeoutMS) * time.Millisecond)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	ins, outs := ports.Names()
	renderPorts(os.Stdout, ins, outs, configuredPortNames(cfg))
	return 0
}

// configuredPortNames returns every in/out name pattern from the surface config.
func configuredPortNames(cfg Config) []string {
	names := []string{cfg.Surface.Main.In, cfg.Surface.Main.Out}
	for _, ext := range cfg.Surface.Extenders {
		names = append(names, ext.In, ext.Out)
	}
	return names
}

func renderPorts(w io.Writer, ins, outs, patterns []string) {
	var b strings.Builder
	b.WriteString(portsTitleStyle.Render("MIDI ports"))
	b.WriteString("\n\n")
	renderPortGroup(&b, "inputs", ins, patterns)
	b.WriteString("\n")
	renderPortGroup(&b, "outputs", outs, patterns)
	fmt.Fprintln(w, b.String())
}

func renderPortGroup(b *strings.Builder, title string, names, patterns []string) {
	b.WriteString(portsHeaderStyle.Render(title))
	b.WriteString("\n")
	if len(names) == 0 {
		b.WriteString(portsDimStyle.Render("  (none)"))
		b.WriteString("\n")
		return
	}
	for i, name := range names {
		b.WriteString("  ")
		b.WriteString(portsIndexStyle.Render(fmt.Sprintf("%d", i)))
		if portMatches(name, patterns) {
			b.WriteString(portsMatchStyle.Render(name + " *"))
		} else {
			b.WriteString(name)
		}
		b.WriteString("\n")
	}
}

func portMatches(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
