// Package cmd provides CLI commands for dicemix.
//
// # Commands
//
// dicemix-local: Runs a whole mix among peers simulated in one process.
// Useful for trying out fields, message sizes and key exchanges, and for
// watching exclusions happen with --silent.
//
//	go run ./cmd/dicemix-local --peers=5 --messages=2
//	go run ./cmd/dicemix-local --config=dicemix.yaml --metrics-addr=:9090
//
// # Configuration
//
// Commands accept a YAML configuration file via the --config flag. Keys
// left out keep the values of protocol.DefaultConfig.
package cmd
