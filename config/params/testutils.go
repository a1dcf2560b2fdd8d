package params

import "testing"

// SetupTestConfigCleanup preserves the current config and registers a test
// cleanup restoring it, so tests can override parameters freely.
func SetupTestConfigCleanup(t testing.TB) {
	prevConfig := KairosConfig().Copy()
	t.Cleanup(func() {
		OverrideKairosConfig(prevConfig)
	})
}
