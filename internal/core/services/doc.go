// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services own the clock: repositories persist the timestamps
// they are given and never read the time themselves.
package services
