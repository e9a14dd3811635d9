// Package ordersservice implements notification order intake for Courier.
//
// The module owns order chains, per-destination deliveries and the per-creator
// status feed. It exposes HTTP command/query handlers and worker entrypoints
// for dispatching due orders and applying delivery results.
package ordersservice
