package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file for kind ("server" or "client") in the
// requested format.
func Template(kind string, format Format) (string, error) {
	var tmpl map[Format]string
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		tmpl = serverTemplates
	case "client":
		tmpl = clientTemplates
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	out, ok := tmpl[format]
	if !ok {
		return "", fmt.Errorf("unknown config format: %s", format)
	}
	return out, nil
}

// WriteTemplate writes the kind template to path, choosing the format from
// the extension.
func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind, FormatOf(path))
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

var serverTemplates = map[Format]string{
	FormatTOML: `name = "packetctl-server"

[transport]
network = "tcp"
addr = "127.0.0.1:9400"
read_timeout = "30s"
write_timeout = "15s"

[codec]
name = "cbor"
compression = "none"
max_payload_bytes = 8388608

[metrics]
enabled = true
addr = "127.0.0.1:9401"

[log]
level = "info"
`,
	FormatYAML: `name: packetctl-server
transport:
  network: tcp
  addr: 127.0.0.1:9400
  read_timeout: 30s
  write_timeout: 15s
codec:
  name: cbor
  compression: none
  max_payload_bytes: 8388608
metrics:
  enabled: true
  addr: 127.0.0.1:9401
log:
  level: info
`,
}

var clientTemplates = map[Format]string{
	FormatTOML: `name = "packetctl-client"

[transport]
network = "tcp"
addr = "127.0.0.1:9400"
connect_timeout = "5s"
read_timeout = "15s"
write_timeout = "15s"
max_attempts = 5

[transport.backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[codec]
name = "cbor"
compression = "zstd"
max_payload_bytes = 8388608

[log]
level = "info"
`,
	FormatYAML: `name: packetctl-client
transport:
  network: tcp
  addr: 127.0.0.1:9400
  connect_timeout: 5s
  read_timeout: 15s
  write_timeout: 15s
  max_attempts: 5
  backoff:
    initial_delay: 250ms
    multiplier: 2.0
    max_delay: 5s
    jitter: true
codec:
  name: cbor
  compression: zstd
  max_payload_bytes: 8388608
log:
  level: info
`,
}
