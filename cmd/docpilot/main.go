// docpilot is a conversational Q&A engine over technical documentation.
// It ingests documentation pages, indexes them for similarity search, and
// answers questions grounded in the indexed content.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
