package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	APIBaseURL string
	SocketURL  string
	DebugAddr  string
}

// socketScheme maps an HTTP scheme onto its websocket equivalent so the
// socket endpoint can be given as either form.
func socketScheme(scheme string) (string, error) {
	switch scheme {
	case "http", "ws":
		return "ws", nil
	case "https", "wss":
		return "wss", nil
	default:
		return "", fmt.Errorf("unsupported socket scheme %q", scheme)
	}
}

func NewConfig(apiBaseURL, socketURL, debugAddr string) (*Config, error) {
	if apiBaseURL == "" {
		return nil, fmt.Errorf("API base URL cannot be empty")
	}
	if socketURL == "" {
		return nil, fmt.Errorf("socket URL cannot be empty")
	}

	apiURL, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if apiURL.Scheme != "http" && apiURL.Scheme != "https" {
		return nil, fmt.Errorf("API base URL must be http or https, got %q", apiURL.Scheme)
	}

	sockURL, err := url.Parse(socketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket URL: %w", err)
	}
	scheme, err := socketScheme(sockURL.Scheme)
	if err != nil {
		return nil, err
	}
	sockURL.Scheme = scheme

	return &Config{
		APIBaseURL: strings.TrimRight(apiURL.String(), "/"),
		SocketURL:  sockURL.String(),
		DebugAddr:  debugAddr,
	}, nil
}
