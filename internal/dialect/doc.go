// Package dialect provides lightweight detection of the agent framework a
// Python unit is written against (LangChain, CrewAI, AutoGen).
//
// It is intentionally non-invasive: evidence collection never changes scan
// behavior. Classification backs the scanners' cheap gates and tags findings
// with the dominant framework; callers apply their own thresholds/policies.
package dialect
