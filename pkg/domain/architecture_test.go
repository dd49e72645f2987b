package domain

import (
	"testing"

	"astrocore/testutil"
)

// The domain package is the shared vocabulary of every backend, so it stays
// on the standard library and never reaches into internal packages.
func TestDomainImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.Prefix("astrocore/internal/"), testutil.ThirdParty("astrocore")),
		"pkg/domain must import only the standard library")
}
