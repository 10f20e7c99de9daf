// Package config loads cmdproxy configuration.
//
// Values come from a YAML file, then from a .env file, then from
// environment variables. The file is cmdproxy.yml in the working directory,
// ./config/, the user config directory or /etc/<service>/. A variable such
// as CMDPROXY_EXEC_TIMEOUT=30s overrides exec.timeout.
//
// # Usage
//
//	cfg, err := config.Load("cmdproxy")
//	engine := process.NewEngine(cfg.Exec.EngineConfig())
package config
