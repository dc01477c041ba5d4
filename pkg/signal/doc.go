// Package signal defines the canonical RiskEvent shape and the stateless
// normalizer that converts raw producer payloads into it. Normalization
// covers shape and units only (kind catalog, severity scales, UTC
// timestamps); risk judgment belongs to the policy engine.
package signal
