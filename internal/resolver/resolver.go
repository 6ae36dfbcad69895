// Package resolver shells out to an external stream-URL resolver (e.g.
// streamlink or youtube-dl) to turn a stream handle into a set of
// playable URLs keyed by quality.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Resolver invokes a configured command with `-Q -j <stream-url>` and
// parses its JSON result.
type Resolver struct {
	command  string
	urlFor   func(handle string) string
}

// New builds a Resolver. urlFor turns a bare stream handle (e.g. a
// Twitch login name) into the full URL passed to the command; if nil,
// the handle is used as-is.
func New(command string, urlFor func(handle string) string) *Resolver {
	if urlFor == nil {
		urlFor = func(handle string) string { return handle }
	}
	return &Resolver{command: command, urlFor: urlFor}
}

type wireResult struct {
	Streams map[string]struct {
		URL string `json:"url"`
	} `json:"streams"`
	Error string `json:"error"`
}

// Resolve runs the resolver command against streamHandle and returns the
// quality→URL map it reports.
func (r *Resolver) Resolve(ctx context.Context, streamHandle string) (map[string]string, error) {
	url := r.urlFor(streamHandle)

	cmd := exec.CommandContext(ctx, r.command, "-Q", "-j", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("resolve %q: %w (%s)", streamHandle, err, stderr.String())
	}

	var result wireResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("resolve %q: parse output: %w", streamHandle, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("resolve %q: %s", streamHandle, result.Error)
	}

	out := make(map[string]string, len(result.Streams))
	for quality, s := range result.Streams {
		out[quality] = s.URL
	}
	return out, nil
}
