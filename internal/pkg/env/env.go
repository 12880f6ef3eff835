package env

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func SetupEnvFile() {
	// Look for .env file in project root
	envFiles := []string{
		".env",       // Current directory
		"../../.env", // From cmd/migrate to project root
		"../../../.env",
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			// Successfully loaded env file
			return
		}
	}

	// If we get here, no env file was found
	panic("No .env file found in any of the expected locations")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}

// IsBillingTest reports whether subscription charges against the commerce
// platform run in test mode. Defaults to test mode outside prod so a dev
// install never creates live charges by accident.
func IsBillingTest() bool {
	switch strings.ToLower(GetEnv("BILLING_TEST_MODE", "")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return IsDev()
}

// AppBaseURL returns the public base URL of the app without trailing slash,
// used to build post-approval return URLs for the billing flow.
func AppBaseURL() string {
	return strings.TrimRight(GetEnv("APP_BASE_URL", "http://localhost:4000"), "/")
}
