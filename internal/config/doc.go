// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package config loads application configuration with Koanf v2.

Sources are layered with increasing precedence: built-in defaults, an optional
YAML file (CONFIG_PATH, ./config.yaml, /etc/presencesync/config.yaml), then
environment variables. A .env file (DOTENV_PATH or ./.env) is loaded into the
environment first without overriding variables that are already set.

Key environment variables:

	PRESENCE_IDENTITY       watched user id (required)
	GATEWAY_URL             wss:// presence gateway
	GATEWAY_RETRY_DELAY     reconnect delay (default 5s)
	PRESENCE_URL            HTTP presence resource base URL
	PRESENCE_POLL_INTERVAL  poll interval (default 30s)
	STORE_TYPE, STORE_PATH  snapshot cache backend (badger|memory)
	HTTP_PORT               API port (default 3860)
	LOG_LEVEL, LOG_FORMAT   logging
	NATS_ENABLED            publish state changes to NATS
	DBUS_ENABLED            watch NetworkManager and logind signals

Validation combines go-playground/validator struct tags with cross-field
checks in Validate.
*/
package config
