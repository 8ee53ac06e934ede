// Package config loads pricinglab configuration.
//
// # Configuration Sources
//
// Values are applied in the following order, later sources winning:
//
//  1. Default()
//  2. A YAML file: $PRICINGLAB_CONFIG_FILE, config.yaml or configs/config.yaml
//  3. Environment variables prefixed with PRICINGLAB_
//
// Environment variables follow the struct nesting:
//
//	PRICINGLAB_SERVER_PORT=9090
//	PRICINGLAB_UPLOADS_ALLOWED_EXTENSIONS=xlsx,csv
//	PRICINGLAB_EXPORT_PDF_ENABLED=true
//	PRICINGLAB_LOGGING_LEVEL=debug
//
// A .env file is loaded by the binaries before Load runs.
//
// # Path Management
//
// Relative directories are resolved against paths.base_dir, which defaults
// to the executable directory:
//
//	paths, err := cfg.ResolvePaths()
//	dir := paths.UploadDir(id)
package config
