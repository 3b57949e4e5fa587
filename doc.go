// Package main is the entry point of identity-gate. It verifies provider
// issued bearer tokens, reconciles provider users with local accounts and
// serves the administrative API that manages them.
package main
