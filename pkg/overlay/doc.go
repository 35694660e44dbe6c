// Package overlay manages the lifecycle of map-anchored visuals.
//
// A Manager owns four cooperating parts, all driven by a schedule.Loop:
//
//   - the Registry, a bounded set of entities with admission control;
//   - the projection sync loop, which re-projects every anchor to screen
//     space on a self-rescheduling timer;
//   - the eviction sweeper, which removes entities older than the retention
//     window on a fixed interval;
//   - the visibility gate, which suspends the sync loop while the host surface
//     is hidden.
//
// The telemetry sampler runs alongside for the lifetime of the manager.
package overlay
