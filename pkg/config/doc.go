// Package config loads typed configuration structs from environment variables
// (github.com/caarlos0/env/v11), optionally seeded from a .env file
// (github.com/joho/godotenv). Every infrastructure package in this module
// exposes its own Config struct with env tags; the CLI loads only the ones a
// command needs.
package config
