package e2e

import (
	"github.com/cucumber/godog"

	"attendsync/e2e/steps/common"
	"attendsync/e2e/steps/sync"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (health, raw requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register sync-specific steps
	sync.RegisterSteps(ctx, tc)
}
