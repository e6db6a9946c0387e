// Package history keeps a durable audit log of presence episodes.
//
// Every acquired, lost, reacquired and cleared event published by the
// presence registry is stored as one row of the presence_episodes table.
// Routine sightings are not stored; their volume belongs in the
// time-series database.
//
// The log is write-only from the registry's point of view: it is never
// replayed into the live registry on startup.
package history
