package core

import (
	"testing"

	"kittycore/testutil"
)

func TestBlobContractHasNoBackendImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.BackendImportForbidden, "blob contract must stay driver agnostic")
}
