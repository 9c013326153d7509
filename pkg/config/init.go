package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the commented template written by "sftpgate init".
const sampleConfig = `# sftpgate configuration

# SSH listener port (default: 22)
port: 2022

logging:
  level: INFO     # DEBUG, INFO, WARN, ERROR
  format: text    # text or json
  output: stdout  # stdout, stderr, or a file path

storage:
  # "local" serves files from base_folder, "s3" from an S3 bucket.
  mode: local
  base_folder: /srv/sftpgate

  # S3 mode:
  # mode: s3
  # bucket: my-transfer-bucket
  # region: eu-west-1

# Short-lived S3 credentials via STS AssumeRole. All three fields are
# required together; omit the whole block to use ambient credentials.
# role_assumption:
#   access_key: AKIA...
#   secret_key: ...
#   role_arn: arn:aws:iam::123456789012:role/transfer-gateway

# Each user is confined to <storage root>/<username>. Repeat a username
# across entries to register multiple public keys.
users:
  - username: alice
    public_key: "ssh-ed25519 AAAA... alice@laptop"
  - username: alice
    public_key: "ssh-ed25519 AAAA... alice@desktop"
  - username: bob
    password: "change-me"

metrics:
  enabled: false
  port: 9090
`

// InitConfig writes the sample configuration to the default location.
// Returns the path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the sample configuration to the given path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
