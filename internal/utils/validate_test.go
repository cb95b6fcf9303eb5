package utils

import "testing"

func init() {
	TestInitLogger()
}

func TestIsValidDomain(t *testing.T) {
	t.Parallel()
	tests := []struct {
		target   string
		expected bool
	}{
		{"example.com", true},
		{"sub.example-site.co.uk", true},
		{"localhost", false},
		{"", false},
		{"192.0.2.1", false},
		{"exa mple.com", false},
		{".example.com", false},
		{"example.com-", false},
	}

	for _, tt := range tests {
		if got := IsValidDomain(tt.target); got != tt.expected {
			t.Errorf("IsValidDomain(%q) = %v, want %v", tt.target, got, tt.expected)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"192.168.1.50", true},
		{"172.16.0.1", true},
		{"127.0.0.1", true},
		{"169.254.0.5", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		if got := IsPrivateIP(tt.ip); got != tt.expected {
			t.Errorf("IsPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
		}
	}
}
