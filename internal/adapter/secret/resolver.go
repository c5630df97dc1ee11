// Package secret resolves credential references from configuration.
//
// A reference is one of:
//
//	env:NAME   value of environment variable NAME
//	file:PATH  contents of PATH without trailing newlines
//	anything   used literally
package secret

import (
	"fmt"
	"os"
	"strings"
)

type Resolver struct {
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
	}
}

func (r *Resolver) Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		val, ok := r.lookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return val, nil

	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		b, err := r.readFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}

	return ref, nil
}
