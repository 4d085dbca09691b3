package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charles-forsyth/skywalker/globals"
)

func TestVerbosityFlagDocumentsVerboseLevel(t *testing.T) {
	flag := RootCommand.PersistentFlags().Lookup("verbosity")
	if flag == nil {
		t.Fatal("verbosity flag not registered")
	}
	if flag.DefValue != "2" {
		t.Errorf("default = %q, want 2", flag.DefValue)
	}
	// The usage string names the level that unlocks the extra progress
	// output, so the gate stays discoverable from --help.
	if !strings.Contains(flag.Usage, fmt.Sprint(globals.GCP_VERBOSE_ERRORS)) {
		t.Errorf("usage %q does not mention level %d", flag.Usage, globals.GCP_VERBOSE_ERRORS)
	}
}
