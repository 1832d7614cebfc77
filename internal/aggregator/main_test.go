package aggregator

import (
	"os"
	"testing"

	"mcpstudio/internal/testing/mock"
)

func TestMain(m *testing.M) {
	mock.MaybeServe()
	os.Exit(m.Run())
}
