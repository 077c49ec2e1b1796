package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticUrlPath  = "/" + StaticLocalDir + "/"

	DefaultConfigPath = "config.yaml"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	PreviewsMemory = "memory"
	PreviewsS3     = "s3"
)
