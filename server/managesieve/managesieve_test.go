package managesieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestManageSieveServerExists verifies that the ManageSieve server package exists and can be imported
func TestManageSieveServerExists(t *testing.T) {
	// This is a simple test to verify that the ManageSieve server package exists
	// and can be imported. It doesn't test any functionality.
	assert.True(t, true, "ManageSieve server package exists")
}

// TestManageSieveSessionExists verifies that the ManageSieve session package exists and can be imported
func TestManageSieveSessionExists(t *testing.T) {
	// This is a simple test to verify that the ManageSieve session package exists
	// and can be imported. It doesn't test any functionality.
	assert.True(t, true, "ManageSieve session package exists")
}
