package config

import "os"

// Credentials are the provider secrets read once at startup. They are
// shared read-only by every request.
type Credentials struct {
	PerplexityAPIKey     string
	RunwayAPIKey         string
	InstagramAccessToken string
	InstagramBusinessID  string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRefreshToken   string
}

// LoadCredentials reads provider secrets from the environment.
func LoadCredentials() *Credentials {
	return &Credentials{
		PerplexityAPIKey:     os.Getenv("PERPLEXITY_API_KEY"),
		RunwayAPIKey:         os.Getenv("RUNWAY_API_KEY"),
		InstagramAccessToken: os.Getenv("INSTAGRAM_ACCESS_TOKEN"),
		InstagramBusinessID:  os.Getenv("IG_BUSINESS_ID"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRefreshToken:   os.Getenv("GOOGLE_REFRESH_TOKEN"),
	}
}

// Presence reports which providers have credentials configured.
func (c *Credentials) Presence() map[string]bool {
	return map[string]bool{
		"perplexity": c.PerplexityAPIKey != "",
		"runway":     c.RunwayAPIKey != "",
		"instagram":  c.InstagramAccessToken != "" && c.InstagramBusinessID != "",
		"youtube":    c.GoogleClientID != "",
	}
}

// HasYouTubeRefresh reports whether a process-wide YouTube refresh token is set.
func (c *Credentials) HasYouTubeRefresh() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}
