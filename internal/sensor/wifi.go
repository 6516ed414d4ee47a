package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/wifi"
)

// LabelTransit marks a transit-environment network sighting.
const LabelTransit = "transit"

// WifiSensor scans for nearby networks and emits a transit event when
// an SSID matches one of the configured keywords. Each matching SSID
// is announced once per contiguous period of visibility: the
// suppression resets when the network drops out of scan results.
type WifiSensor struct {
	scanner  wifi.Scanner
	interval time.Duration
	keywords []string

	announced map[string]bool
}

// NewWifiSensor creates a wifi sensor from config.
func NewWifiSensor(cfg config.WifiConfig, scanner wifi.Scanner) *WifiSensor {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return &WifiSensor{
		scanner:   scanner,
		interval:  config.Duration(cfg.Interval, time.Minute),
		keywords:  keywords,
		announced: make(map[string]bool),
	}
}

func (s *WifiSensor) Name() string {
	return "wifi"
}

func (s *WifiSensor) Interval() time.Duration {
	return s.interval
}

// Poll runs one scan cycle.
func (s *WifiSensor) Poll(ctx context.Context) ([]Event, error) {
	ssids, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	visible := make(map[string]bool, len(ssids))
	var events []Event
	for _, ssid := range ssids {
		if ssid == "" {
			continue
		}
		visible[ssid] = true
		if !s.matches(ssid) || s.announced[ssid] {
			continue
		}
		s.announced[ssid] = true
		events = append(events, Event{
			Source: "wifi",
			Label:  LabelTransit,
			Detail: ssid,
		})
	}

	// Reset suppression for networks that went away.
	for ssid := range s.announced {
		if !visible[ssid] {
			delete(s.announced, ssid)
		}
	}

	return events, nil
}

func (s *WifiSensor) matches(ssid string) bool {
	lower := strings.ToLower(ssid)
	for _, k := range s.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
