// Package optest provides a reusable conformance suite for Operator
// implementations. It tests the interface contract, not implementation
// details, so every backend (memory, fs, badger, s3) runs the same checks.
package optest

import (
	"context"
	"testing"

	"github.com/stratofs/stratofs/pkg/operator"
)

// Suite exercises the full Operator contract against one implementation.
//
// Usage:
//
//	func TestMemoryOperator(t *testing.T) {
//	    suite := &optest.Suite{
//	        NewOperator: func(t *testing.T) operator.Operator {
//	            return memory.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type Suite struct {
	// NewOperator returns a fresh, empty operator for each test. Cleanup
	// belongs on t.Cleanup inside the factory.
	NewOperator func(t *testing.T) operator.Operator
}

// Run executes all tests in the suite.
func (suite *Suite) Run(t *testing.T) {
	t.Run("StatAndRead", suite.RunStatReadTests)
	t.Run("Writes", suite.RunWriteTests)
	t.Run("WriteStreams", suite.RunWriteStreamTests)
	t.Run("Listing", suite.RunListingTests)
	t.Run("DeleteAndRename", suite.RunDeleteRenameTests)
	t.Run("Directories", suite.RunDirectoryTests)
}

func testContext() context.Context {
	return context.Background()
}
