// Package scan holds the construct scanners: one per agent framework plus a
// generic credential scanner. Scanners are stateless; all per-unit derived
// state (the protected-block index) lives in the Context the runner builds.
//
// A scanner never fails analysis. Matching is textual and approximate by
// contract: malformed source degrades to zero findings, and a panicking
// scanner is isolated by the runner and contributes nothing.
package scan
