package e2e

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

// TestFeatures runs the scenarios under features/ against a running server.
// Set E2E_BASE_URL (for example http://localhost:8080) to enable it.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("E2E_BASE_URL not set")
	}
	tc := NewTestContext(baseURL, strconv.FormatInt(time.Now().UnixNano(), 36))

	suite := godog.TestSuite{
		Name: "attendsync",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
