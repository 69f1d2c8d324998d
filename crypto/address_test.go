package crypto

import (
	"bytes"
	"errors"
	"testing"
)

const (
	lenderAddr   = "osmo1t3gjpqadhhqcd29v64xa06z66mmz7kazsvkp69"
	borrowerAddr = "osmo1y244hh4g6ku4kznyy5c53adgu9m8jucf0kmz82"
)

func TestDecodeAddressRoundTrip(t *testing.T) {
	for _, raw := range []string{lenderAddr, borrowerAddr} {
		addr, err := DecodeAddress(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if addr.Prefix() != "osmo" {
			t.Fatalf("unexpected prefix %q", addr.Prefix())
		}
		if len(addr.Bytes()) != AddressLength {
			t.Fatalf("unexpected payload length %d", len(addr.Bytes()))
		}
		if addr.String() != raw {
			t.Fatalf("round trip mismatch: %s != %s", addr.String(), raw)
		}
	}
}

func TestEncodeKnownPayload(t *testing.T) {
	addr := NewAddress("osmo", bytes.Repeat([]byte{0x11}, AddressLength))
	if got := addr.String(); got != "osmo1zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3fxyjya" {
		t.Fatalf("unexpected encoding %s", got)
	}
}

func TestValidateAddressRejectsBadInput(t *testing.T) {
	if _, err := ValidateAddress("osmo1t3gjpqadhhqcd29v64xa06z66mmz7kazsvkp68", "osmo"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected checksum failure, got %v", err)
	}
	if _, err := ValidateAddress(lenderAddr, "cosmos"); !errors.Is(err, ErrPrefixMismatch) {
		t.Fatalf("expected prefix mismatch, got %v", err)
	}
	if _, err := ValidateAddress("", ""); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected empty address to fail, got %v", err)
	}
}

func TestModuleAddressIsDeterministic(t *testing.T) {
	a := ModuleAddress("osmo", "lending")
	b := ModuleAddress("osmo", "lending")
	if !a.Equal(b) {
		t.Fatalf("expected identical module addresses")
	}
	if a.Equal(ModuleAddress("osmo", "bank")) {
		t.Fatalf("expected distinct module addresses per name")
	}
	decoded, err := DecodeAddress(a.String())
	if err != nil || !decoded.Equal(a) {
		t.Fatalf("module address should round trip: %v", err)
	}
}
