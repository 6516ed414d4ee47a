// Package wifi lists nearby wireless networks using the platform's
// command line tooling.
package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// Scanner lists the SSIDs currently visible to the machine.
type Scanner interface {
	Scan(ctx context.Context) ([]string, error)
}

// CommandScanner shells out to netsh, airport, or nmcli depending on
// the platform.
type CommandScanner struct{}

// Scan runs one scan and returns deduplicated SSIDs.
func (CommandScanner) Scan(ctx context.Context) ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		out, err := exec.CommandContext(ctx, "netsh", "wlan", "show", "networks").Output()
		if err != nil {
			return nil, fmt.Errorf("netsh scan failed: %w", err)
		}
		return parseNetsh(string(out)), nil
	case "darwin":
		out, err := exec.CommandContext(ctx, airportPath, "-s").Output()
		if err != nil {
			return nil, fmt.Errorf("airport scan failed: %w", err)
		}
		return parseAirport(string(out)), nil
	default:
		out, err := exec.CommandContext(ctx, "nmcli", "-t", "-f", "ssid", "dev", "wifi").Output()
		if err != nil {
			return nil, fmt.Errorf("nmcli scan failed: %w", err)
		}
		return parseNmcli(string(out)), nil
	}
}

// parseNetsh extracts SSIDs from `netsh wlan show networks` output.
// Lines look like "SSID 1 : CoffeeShop".
func parseNetsh(out string) []string {
	var ssids []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "SSID") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		ssid := strings.TrimSpace(line[idx+1:])
		if ssid != "" && !seen[ssid] {
			seen[ssid] = true
			ssids = append(ssids, ssid)
		}
	}
	return ssids
}

// parseAirport extracts SSIDs from `airport -s` output. The first
// line is a header; the SSID is the first whitespace-delimited column.
func parseAirport(out string) []string {
	var ssids []string
	seen := make(map[string]bool)
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ssid := fields[0]
		if !seen[ssid] {
			seen[ssid] = true
			ssids = append(ssids, ssid)
		}
	}
	return ssids
}

// parseNmcli extracts SSIDs from `nmcli -t -f ssid dev wifi` output,
// one SSID per line.
func parseNmcli(out string) []string {
	var ssids []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		ssid := strings.TrimSpace(line)
		if ssid != "" && ssid != "--" && !seen[ssid] {
			seen[ssid] = true
			ssids = append(ssids, ssid)
		}
	}
	return ssids
}
