package wifi

import "testing"

func TestParseNetsh(t *testing.T) {
	out := `
Interface name : Wi-Fi
There are 3 networks currently visible.

SSID 1 : CoffeeShop
    Network type            : Infrastructure
    Authentication          : WPA2-Personal

SSID 2 : Metro Bus 42
    Network type            : Infrastructure

SSID 3 :
    Network type            : Infrastructure
`
	got := parseNetsh(out)
	want := []string{"CoffeeShop", "Metro Bus 42"}
	assertSSIDs(t, got, want)
}

func TestParseAirport(t *testing.T) {
	out := `                            SSID BSSID             RSSI CHANNEL HT CC SECURITY
                      CoffeeShop aa:bb:cc:dd:ee:01 -50  6       Y  US WPA2(PSK/AES/AES)
                   Station_WiFi aa:bb:cc:dd:ee:02 -70  11      Y  US NONE
                      CoffeeShop aa:bb:cc:dd:ee:03 -60  1       Y  US WPA2(PSK/AES/AES)
`
	got := parseAirport(out)
	want := []string{"CoffeeShop", "Station_WiFi"}
	assertSSIDs(t, got, want)
}

func TestParseNmcli(t *testing.T) {
	out := "CoffeeShop\nTrain-Free-WiFi\n--\n\nCoffeeShop\n"
	got := parseNmcli(out)
	want := []string{"CoffeeShop", "Train-Free-WiFi"}
	assertSSIDs(t, got, want)
}

func assertSSIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d SSIDs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SSID %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
