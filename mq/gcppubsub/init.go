package gcppubsub

import (
	"log"
	"os"
)

// GetGCPProjectID reads the target project from the environment. Pub/Sub has
// no sensible default project, so a missing value is fatal.
func GetGCPProjectID() string {
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		log.Fatal("GCP_PROJECT_ID environment variable must be set.")
	}
	return projectID
}
