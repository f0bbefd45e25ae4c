// Package domain defines the core business entities of the scheduling engine:
// cards, review logs, and the closed Rating and State enumerations.
//
// Entities validate themselves on construction and on hydration from storage.
// Out-of-range values are rejected rather than clamped so that data corruption
// upstream surfaces as an error instead of being silently absorbed.
package domain
