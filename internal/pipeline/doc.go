// Package pipeline advances video generation sessions through their
// stages. A Coordinator polls the session manager for actionable
// sessions and dispatches each to the Agent registered for its current
// stage; agents return structured patches that the manager persists as
// events. Stub agents provide a complete offline pipeline for
// development and health verification.
package pipeline
