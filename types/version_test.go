package types

import (
	"strconv"
	"strings"
	"testing"
)

func TestVersion_IsSemver(t *testing.T) {
	core, _, _ := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		t.Fatalf("Version %q does not have three components", Version)
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err != nil {
			t.Errorf("Version %q: component %q is not numeric", Version, p)
		}
	}
}

func TestContractVersion_Lockstep(t *testing.T) {
	if ContractVersion != Version {
		t.Errorf("ContractVersion = %q, Version = %q", ContractVersion, Version)
	}
}
