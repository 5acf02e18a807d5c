// Package nlp turns free-text commands into executor actions.
//
// The Normalizer asks the remote ML parser first and falls back to a
// deterministic keyword classifier whenever the service is unhealthy,
// slow, unreachable or returns something unusable. Upstream responses are
// normalized into a ParseResult regardless of which field names the model
// used. Translate then maps the ML vocabulary onto vehicle actions and
// fills in required parameters:
//
//	n := nlp.NewNormalizer(nlp.NewMLClient(cfg.ML), nlp.WithCache(c))
//	res := n.Parse(ctx, "set the temperature to 21")
//	action, params := nlp.Translate(res)
package nlp
