package config

const (
	DefaultBaseSize   float64 = 16
	DefaultLineHeight float64 = 1.5
	DefaultRadius     float64 = 4
)
