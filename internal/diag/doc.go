// Package diag defines the issue model shared by every scanner and every
// output surface: rule codes, severities, categories, the Issue record
// itself, the Bag that collects issues for one analysis pass, and the fix
// model remediation edits travel in.
//
// Conventions:
//
//   - Codes are stable. External tooling (CI gates, remediation UIs,
//     documentation links) keys off the FKnnn identifiers, so a code is
//     never renumbered or reused, only added.
//   - An Issue's Primary span always lies inside the unit that produced it.
//   - Fixes are lazy. A Fix either carries literal Edits or a Thunk that
//     builds them against the current UnitSet; Resolve materializes either
//     form. Edits carry OldText guards so a fix computed against stale text
//     is skipped instead of corrupting the file.
//   - Bags are collected per pass and replaced wholesale on the next pass;
//     nothing patches an individual Issue in place.
package diag
