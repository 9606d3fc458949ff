// Package sync provides the synchronization bridge between the local
// team cache and the authoritative remote store.
//
// # Overview
//
// Every local mutation is written to the local store together with a
// sync_queue entry describing how to replay it remotely. A sync cycle first
// pushes the queue, then pulls the owner's full remote state and overwrites
// the local cache with it:
//
//	Local store                       Remote
//	  sync_queue ── Processor.Process ──▶ upsert / update / delete
//	  teams, members ◀── Puller.Pull ──── fetch teams, fetch members
//
// Push always runs first. A pull overwrites the local cache, so queued edits
// must reach the remote before the snapshot is taken.
//
// # Usage
//
//	processor := sync.NewProcessor(st, rs, online, logger)
//	puller := sync.NewPuller(st, rs, logger)
//	engine := sync.NewEngine(processor, puller, online, sync.Config{}, logger)
//
//	snapshot := engine.FullSync(ctx, ownerID) // nil when offline or pull failed
//
// # Error Handling
//
// The processor is resilient to individual entry failures:
//
//   - A failed entry stays in the queue for the next cycle
//   - Later entries for the same record are held back so replay order holds
//   - A remote that does not know an optional column gets the entry again
//     without that column
//
// Sync errors never propagate past the Engine. They are logged, and the
// Result passed to OnCycle observers carries them.
//
// # Concurrency
//
// Cycles are single-flight per owner: a FullSync that starts while another
// cycle for the same owner is running waits for that cycle and shares its
// result. Each cycle runs under Config.CycleTimeout; on timeout the in-flight
// remote call is abandoned and its queue entry, with all later ones, is left
// for the next cycle.
package sync
