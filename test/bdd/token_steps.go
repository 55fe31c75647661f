package bdd

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// registerTokenSteps covers S6: a proactive refresh (spec.md §4.9) gets
// "Token has been revoked" from FFN's token endpoint as errs.TokenRevoked,
// and the step then deactivates the tenant's FFN configuration itself.
func (w *World) registerTokenSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the FFN refresh token endpoint reports the token as revoked$`, w.revokeFFNToken)
	sc.Step(`^the proactive token refresh runs for the tenant$`, w.runProactiveTokenRefresh)
	sc.Step(`^the FFN configuration for the tenant is marked inactive$`, w.assertFFNConfigInactive)
}

func (w *World) revokeFFNToken() error {
	w.ffnFake.revokeToken()
	return nil
}

func (w *World) runProactiveTokenRefresh() error {
	ffnClient := ffn.New(w.ffnSrv.URL, postgres.NewTokenStore(w.vault))
	err := ffnClient.RefreshTokenProactively(context.Background(), w.tenantID)
	if _, ok := err.(*errs.TokenRevoked); !ok {
		return fmt.Errorf("expected errs.TokenRevoked, got %T: %v", err, err)
	}
	return postgres.SetFFNConfigInactive(w.tenantID)
}

func (w *World) assertFFNConfigInactive() error {
	cfg, err := postgres.GetFFNConfig(w.tenantID)
	if err != nil {
		return err
	}
	if cfg.IsActive {
		return fmt.Errorf("expected ffn config to be inactive")
	}
	return nil
}
