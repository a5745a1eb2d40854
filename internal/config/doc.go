// Package config loads the tool configuration: the optional
// testnet-deploy.yaml file, a .env file in the working directory, and
// environment overrides for credentials and paths.
//
// Timeouts are read separately through [LoadTimeouts] so long-running
// operations can be tuned without touching the config file.
package config
