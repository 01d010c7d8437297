package simulation

import (
	"io"
	"os"
)

const usage = `reachyou simulation
===================

Creates profiles, streams sensor readings, registers and rates couples
against a running service, then checks fated matches and the couple
leaderboard against local computations.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -profiles int      Profiles to create (default 200)
  -readings int      Readings per profile (default 3)
  -couples int       Couples to register (default 50)
  -ratings int       Ratings per couple (default 4)
  -workers int       Concurrent requests (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 10s)
  -settle duration   Maximum wait for queued readings (default 2m)
  -seed uint         Generator seed (default 42)
  -output string     Write the generated data to this JSON file
  -verbose           Log rejected readings
  -help              Show this help message

Examples:
  go run ./cmd/simulate -profiles 2000 -workers 32
  go run ./cmd/simulate -url http://localhost:8080 -output run.json
`

// ShowHelp prints usage information to stdout.
func ShowHelp() { writeHelp(os.Stdout) }

func writeHelp(w io.Writer) { _, _ = io.WriteString(w, usage) }
