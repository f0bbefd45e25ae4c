// Package store defines the persistence collaborator interfaces consumed by
// the scheduling engine, along with the sentinel errors their implementations
// return.
//
// The scheduler core never performs I/O itself; it only ever sees the
// canonical Card and ReviewLog shapes. Implementations (see
// internal/platform/postgres) own hydration, schema discrimination and the
// compare-and-set write protocol that serializes concurrent reviews of the
// same card.
package store
