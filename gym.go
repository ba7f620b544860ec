//go:build gym

package main

// Registers the gym backends for the D4RL catalogs
import _ "github.com/samuelfneumann/goalenv/environment/gym"
