package server

// Config holds the HTTP API settings.
type Config struct {
	Addr            string
	AllowOrigins    []string
	MaxBodyBytes    int64
	CacheTTLSeconds int
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AllowOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"},
		MaxBodyBytes:    32 << 20,
		CacheTTLSeconds: 300,
	}
}
