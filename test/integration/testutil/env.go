package testutil

import (
	"fmt"
	"os"
	"testing"
)

const DefaultHealthCheckTimeout = 30 * ConnectionTimeout

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	AuthSecret   string
}

// NewTestEnv reads the integration environment. TEST_SERVER_URL must
// point to a running service; tests skip when it is unset.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		if port := os.Getenv("TEST_SERVER_PORT"); port != "" {
			serverURL = fmt.Sprintf("http://localhost:%s", port)
		}
	}
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set; skipping integration tests")
	}

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    serverURL,
		AuthSecret:   getEnv("TEST_AUTH_SECRET", "integration-test-secret"),
	}
}

func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *Client) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanCollections(t)

	client := NewClient(e.ServerURL)
	client.WaitForHealthy(t, DefaultHealthCheckTimeout)

	return mongo, client
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanCollections(t)
		mongo.Close(t)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
