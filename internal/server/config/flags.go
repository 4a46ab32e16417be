package config

import (
	"flag"
	"os"
	"time"

	"github.com/vserve-ph/arta-backend/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":5000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-i string   identity provider endpoint
//	-k string   identity provider API key
//	-w int      identity provider timeout, seconds
//	-r int      audit-log retention, days
//	-x string   exports directory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and converted to
//     time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-i", "-k", "-w", "-r", "-x", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTokenValidityDuration := fs.Int("t", int(config.SessionTokenValidityDuration.Minutes()), "session_token_validity_duration (in minutes)")

	fs.StringVar(&config.IdentityEndpoint, "i", config.IdentityEndpoint, "identity provider endpoint")
	fs.StringVar(&config.IdentityAPIKey, "k", config.IdentityAPIKey, "identity provider API key")

	identityTimeout := fs.Int("w", int(config.IdentityTimeout.Seconds()), "identity provider timeout (in seconds)")

	fs.IntVar(&config.AuditRetentionDays, "r", config.AuditRetentionDays, "audit log retention (in days)")
	fs.StringVar(&config.ExportsDir, "x", config.ExportsDir, "exports directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidityDuration = time.Duration(*sessionTokenValidityDuration) * time.Minute
	config.IdentityTimeout = time.Duration(*identityTimeout) * time.Second
}
