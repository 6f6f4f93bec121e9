// Package session defines the core domain types for video generation
// jobs: the validated request, the pipeline stage enum, stage result
// payloads, and the materialized session state. The types here carry no
// I/O; persistence and mutation live in eventlog and manager.
package session
