package config

import "os"

type Config struct {
	Port            string
	Env             string
	PostgresConnStr string
	MongoURI        string
	URLPrefix       string
	DisplayTimezone string
	TemplateDir     string // optional override for the embedded partials
	ScriptPath      string
	StylePath       string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		URLPrefix:       getEnv("ACTIVITY_URL_PREFIX", "/api/v1"),
		DisplayTimezone: getEnv("ACTIVITY_DISPLAY_TZ", "UTC"),
		TemplateDir:     getEnv("ACTIVITY_TEMPLATE_DIR", ""),
		ScriptPath:      getEnv("ACTIVITY_SCRIPT_PATH", "/static/activities/js/activities.js"),
		StylePath:       getEnv("ACTIVITY_STYLE_PATH", "/static/activities/css/activities.css"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
