// Package common provides shared constants, types, utilities, and interfaces
// used throughout the vpnswitch application.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Application-wide constants like timeouts, file names, and bounds
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: Abstractions for credential storage, notifications, and logging
//   - Logger: Structured logging with rotated file output
//   - Broadcaster: Generic fan-out used for event and state streams
//   - Utils: Common utility functions for directories and string slices
//
// # Usage
//
// Import the package to access shared functionality:
//
//	import "vpnswitch/common"
//
//	// Use constants
//	timeout := common.DefaultBackendTimeout
//
//	// Use logger
//	common.LogInfo("Connecting to %s", profileName)
//
//	// Check errors
//	if errors.Is(err, common.ErrProfileNotFound) {
//	    // Handle missing profile
//	}
//
// # Design Principles
//
// This package follows several design principles:
//
//   - Single Responsibility: Each file handles one concern
//   - Interface Segregation: Small, focused interfaces
//   - Dependency Inversion: High-level modules depend on abstractions
package common
