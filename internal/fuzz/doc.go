// Package fuzztests houses Go fuzz harnesses that exercise the audit
// pipeline (source loading, scanning, remedy resolution) on arbitrary
// inputs. Its goal is to smoke test robustness: no input may panic a
// scanner, hang the window machinery or resolve a fix whose edits fall
// outside the unit.
//
// It does not generate corpora, write files or execute the CLI.
package fuzztests
