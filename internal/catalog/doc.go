// ABOUTME: Package documentation for the agent and model catalogs
// ABOUTME: Describes caching, pruning, and selection fallback

// Package catalog caches what the backend can run: agents and models.
//
// AgentStore persists the agent catalog so an offline start still has
// agents to show; each successful refresh upserts the backend's rows
// and prunes cached entries the backend stopped listing. ModelStore is
// purely in-memory since models are cheap to refetch.
//
// Both stores share the same selection rule: selecting an unknown name
// falls back to the last catalog entry, and a selection that vanishes
// during a refresh does the same. SetAgent is the strict variant and
// rejects names outside the catalog.
package catalog
