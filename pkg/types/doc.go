// Package types defines the Store interface, the SRD entity types, the
// on-disk database shape and the standard errors for the tome reference
// data store.
//
// Entities come in six types (monsters, races, classes, spells, items,
// backgrounds) and two partitions: official entries synced from the
// Open5e API and custom entries authored by users.
package types
