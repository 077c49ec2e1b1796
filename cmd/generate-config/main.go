package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/site-builder/internal/config"
)

const header = `# Site Builder Configuration Example
# Copy this file to config.yaml and customize as needed.
# S3 credentials are read from S3_ACCESS_KEY_ID and S3_ACCESS_KEY_SECRET
# (a .env file next to the binary is loaded on start).

`

func main() {
	output := flag.String("o", "config.example.yaml", `Output file, or "-" for stdout`)
	previews := flag.String("previews", config.PreviewsMemory, "Preview backend to write: memory or s3")
	flag.Parse()

	// Create a config with defaults applied
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	if *previews == config.PreviewsS3 {
		cfg.Previews.Backend = config.PreviewsS3
		cfg.Previews.S3Bucket = "site-builder"
		cfg.Previews.S3Endpoint = "https://<account>.r2.cloudflarestorage.com"
		cfg.Previews.S3PublicURL = "https://assets.example.com"
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}

	out := header + string(yamlData)

	if *output == "-" {
		fmt.Print(out)
		return
	}

	if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", *output)
}
