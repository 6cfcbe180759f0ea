// Package config loads typed configuration from the environment.
//
// Values come from struct tags understood by github.com/caarlos0/env and are
// read from the process environment layered over dotenv files parsed with
// github.com/joho/godotenv. Dotenv files never modify the process
// environment.
//
//	cfg, err := config.Load[rls.Config]()
//	if err != nil {
//		return err
//	}
//
// Load returns a new value on every call and keeps no global state, so the
// result can be treated as immutable and injected into components.
package config
