// Package services provides the centralized service registry for questboard.
//
// Registry pattern for accessing all core services (users, projects,
// completion, xp ledger, activity, notifications). Use Wire() to build every
// service over one store, or NewRegistry() with pre-built instances, then
// accessor methods to retrieve individual services.
package services
