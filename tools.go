//go:build tools

package tools

// Mocks under pkg/**/mocks are generated with mockery.
import (
	_ "github.com/vektra/mockery/v2"
)
