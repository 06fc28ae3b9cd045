// Package deploy provisions a host for the managed game server: the service
// account, the deployment directory layout, seeded server data, the service
// unit and the firewall rule. It is a one-time flow; individual steps are
// idempotent where the host allows it.
package deploy
