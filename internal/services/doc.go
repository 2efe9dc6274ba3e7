// Package services implements the business logic layer of the linguist
// management dashboard. It provides a clean separation between HTTP
// handlers and the dataset/analytics packages, ensuring that business
// rules are centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection for loose coupling
//	3. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
//	- DashboardService: owns per-session uploads, derived statistics,
//	  search and CSV export
//	- HealthService: provides system health checks and version info
//
// # Error Handling
//
// Services return the sentinel errors declared in errors.go; handlers
// map them onto HTTP status codes with errors.Is.
package services
