/*
Package testutil provides test fixtures for the mixing engine.

It generates configurations, long-term identities and random messages, and
wires sets of engines to a shared protocol.LocalHub so that whole mixes can
run inside a single test.

# Configuration Generators

	// Small field, short messages, bounded runs
	cfg := testutil.NewTestConfig()

	// Customized
	cfg := testutil.NewTestConfig(
	    testutil.WithField("p127"),
	    testutil.WithRoundTimeout(500*time.Millisecond),
	)

# Running a Mix

	mix, _ := testutil.NewTestMix(cfg, 3, 1)
	engines := make([]*protocol.Engine, 3)
	for i := range engines {
	    engines[i], _ = mix.Engine(i)
	}
	outcomes := testutil.RunAll(ctx, engines)

Misbehavior is injected with LocalHub.Intercept, which can drop or rewrite
any payload on its way to the other peers.
*/
package testutil
